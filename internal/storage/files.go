package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

const (
	uploadsDirName = "uploads"
	reportsDirName = "generated-reports"

	defaultRawExt = ".ogg"
	wavExt        = ".wav"
	reportExt     = ".pdf"
)

// FileStore owns the ephemeral per-submission artifacts: the raw upload, the
// transcoded waveform, and the rendered report. Paths are deterministic per
// submission ID so a resubmission reclaims the same namespace.
type FileStore struct {
	uploadDir      string
	reportDir      string
	maxUploadBytes int64
}

// Artifacts are the three owned paths of a single submission.
type Artifacts struct {
	SubmissionID   string
	RawPath        string
	TranscodedPath string
	ReportPath     string
}

func NewFileStore(baseDir string, maxUploadBytes int64) (*FileStore, error) {
	fs := &FileStore{
		uploadDir:      filepath.Join(baseDir, uploadsDirName),
		reportDir:      filepath.Join(baseDir, reportsDirName),
		maxUploadBytes: maxUploadBytes,
	}

	for _, dir := range []string{baseDir, fs.uploadDir, fs.reportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fs, nil
}

// Acquire allocates the three artifact paths for a submission and removes any
// stale file a prior run may have left at them. An empty submission ID gets a
// generated one. The raw extension is taken from the inbound filename so the
// transcoder can sniff the container.
func (fs *FileStore) Acquire(submissionID, filename string) (Artifacts, error) {
	if strings.TrimSpace(submissionID) == "" {
		submissionID = uuid.NewString()
	}
	submissionID = sanitizeID(submissionID)

	ext := normalizeExtension(filename)
	if ext == "" || ext == wavExt {
		ext = defaultRawExt
	}

	a := Artifacts{
		SubmissionID:   submissionID,
		RawPath:        filepath.Join(fs.uploadDir, submissionID+ext),
		TranscodedPath: filepath.Join(fs.uploadDir, submissionID+wavExt),
		ReportPath:     filepath.Join(fs.reportDir, submissionID+reportExt),
	}

	for _, path := range []string{a.RawPath, a.TranscodedPath, a.ReportPath} {
		if err := removeIfExists(path); err != nil {
			return Artifacts{}, &domain.ArtifactIOError{Op: "clear stale artifact", Path: path, Err: err}
		}
	}

	return a, nil
}

// SaveUpload streams the inbound audio to the raw path, enforcing the upload
// size limit. The partial file is removed on any failure.
func (fs *FileStore) SaveUpload(a Artifacts, r io.Reader) error {
	out, err := os.Create(a.RawPath)
	if err != nil {
		return &domain.ArtifactIOError{Op: "create upload", Path: a.RawPath, Err: err}
	}

	cleanup := func(err error) error {
		out.Close()
		os.Remove(a.RawPath)
		return err
	}

	limit := fs.maxUploadBytes
	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if limit > 0 && total > limit {
				return cleanup(&domain.ArtifactIOError{
					Op: "save upload", Path: a.RawPath,
					Err: fmt.Errorf("audio exceeds maximum size of %d bytes", limit),
				})
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(&domain.ArtifactIOError{Op: "write upload", Path: a.RawPath, Err: werr})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return cleanup(&domain.ArtifactIOError{Op: "read upload", Path: a.RawPath, Err: rerr})
		}
	}

	if total == 0 {
		return cleanup(&domain.ArtifactIOError{
			Op: "save upload", Path: a.RawPath, Err: fmt.Errorf("empty audio upload"),
		})
	}

	if err := out.Close(); err != nil {
		os.Remove(a.RawPath)
		return &domain.ArtifactIOError{Op: "close upload", Path: a.RawPath, Err: err}
	}
	return nil
}

// ReportPath returns the deterministic report location for a submission.
func (fs *FileStore) ReportPath(submissionID string) string {
	return filepath.Join(fs.reportDir, sanitizeID(submissionID)+reportExt)
}

// Release deletes the raw and transcoded files. It must run on every exit
// path of the pipeline; the report survives until ReleaseReport.
func (fs *FileStore) Release(a Artifacts) error {
	var errs []error
	for _, path := range []string{a.RawPath, a.TranscodedPath} {
		if path == "" {
			continue
		}
		if err := removeIfExists(path); err != nil {
			errs = append(errs, &domain.ArtifactIOError{Op: "release artifact", Path: path, Err: err})
		}
	}
	return errors.Join(errs...)
}

// ReleaseReport deletes the rendered report after it has been delivered.
func (fs *FileStore) ReleaseReport(a Artifacts) error {
	if a.ReportPath == "" {
		return nil
	}
	if err := removeIfExists(a.ReportPath); err != nil {
		return &domain.ArtifactIOError{Op: "release report", Path: a.ReportPath, Err: err}
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func normalizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// sanitizeID keeps submission IDs path-safe. Inbound file handles are opaque
// strings chosen by the transport.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
