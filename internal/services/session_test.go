package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/audio"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/metrics"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/storage"
)

// stubTranscoder writes a valid silent waveform instead of invoking ffmpeg.
type stubTranscoder struct {
	fail  bool
	block chan struct{}
}

func (s *stubTranscoder) Convert(ctx context.Context, rawPath, outPath string) error {
	if s.block != nil {
		<-s.block
	}
	if s.fail {
		return &domain.TranscodeError{Path: rawPath, Err: errors.New("unsupported container")}
	}
	data, err := audio.Encode(make([]int16, 16000), 16000)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func newTestService(t *testing.T, tc Transcoder) (*SessionService, string) {
	t.Helper()

	dataDir := t.TempDir()
	files, err := storage.NewFileStore(dataDir, 1024*1024)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	svc := NewSessionService(
		storage.NewSessionRepository(time.Hour),
		files,
		tc,
		NewFeatureExtractor(NewSeededMeasurementProvider(7)),
		NewClassifier(DefaultPolicy()),
		NewReportBuilder(DefaultPageTemplate("")),
		metrics.New(),
		time.Minute,
	)
	return svc, dataDir
}

func advanceToAudio(t *testing.T, svc *SessionService, sessionID string) {
	t.Helper()
	svc.Restart(sessionID)
	for _, text := range []string{"Alice", "34", "A-100"} {
		if _, err := svc.HandleText(sessionID, text); err != nil {
			t.Fatalf("advance with %q: %v", text, err)
		}
	}
}

func uploadsLeft(t *testing.T, dataDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dataDir, "uploads"))
	if err != nil {
		t.Fatalf("read uploads dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTextCollectionAdvancesSteps(t *testing.T) {
	svc, _ := newTestService(t, &stubTranscoder{})

	session := svc.Restart("u1")
	if session.Step != domain.StepAwaitingName {
		t.Fatalf("step after restart = %s", session.Step)
	}

	steps := []domain.Step{
		domain.StepAwaitingAge,
		domain.StepAwaitingAppointmentID,
		domain.StepAwaitingAudio,
	}
	for i, text := range []string{"Alice", "34", "A-100"} {
		step, err := svc.HandleText("u1", text)
		if err != nil {
			t.Fatalf("text %q: %v", text, err)
		}
		if step != steps[i] {
			t.Fatalf("step after %q = %s, want %s", text, step, steps[i])
		}
	}

	session, _ = svc.Session("u1")
	if session.Name != "Alice" || session.Age != "34" || session.AppointmentID != "A-100" {
		t.Fatalf("collected fields wrong: %+v", session)
	}
}

func TestTextRejectedOutOfSequence(t *testing.T) {
	svc, _ := newTestService(t, &stubTranscoder{})

	// Before any restart.
	if _, err := svc.HandleText("ghost", "hello"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before restart, got %v", err)
	}

	// While awaiting audio.
	advanceToAudio(t, svc, "u1")
	if _, err := svc.HandleText("u1", "extra"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState in audio step, got %v", err)
	}

	session, _ := svc.Session("u1")
	if session.Name != "Alice" || session.Step != domain.StepAwaitingAudio {
		t.Fatalf("rejected input mutated session: %+v", session)
	}
}

func TestHandleAudioCompletesSession(t *testing.T) {
	svc, dataDir := newTestService(t, &stubTranscoder{})
	advanceToAudio(t, svc, "u1")

	report, err := svc.HandleAudio(context.Background(), "u1", "file-1", "voice.ogg", strings.NewReader("ogg bytes"))
	if err != nil {
		t.Fatalf("handle audio: %v", err)
	}

	if _, err := os.Stat(report.Path); err != nil {
		t.Fatalf("report missing after success: %v", err)
	}
	if report.Diagnosis.Confidence < 60 || report.Diagnosis.Confidence > 99 {
		t.Fatalf("confidence %f outside [60, 99]", report.Diagnosis.Confidence)
	}

	session, _ := svc.Session("u1")
	if session.Step != domain.StepComplete {
		t.Fatalf("step = %s, want %s", session.Step, domain.StepComplete)
	}

	if left := uploadsLeft(t, dataDir); len(left) != 0 {
		t.Fatalf("intermediate artifacts left behind: %v", left)
	}

	// Completed sessions accept no further input without a restart.
	if _, err := svc.HandleText("u1", "again"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after completion, got %v", err)
	}

	if err := svc.ReleaseReport(report); err != nil {
		t.Fatalf("release report: %v", err)
	}
	if _, err := os.Stat(report.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("report survived release")
	}
}

func TestHandleAudioWrongStep(t *testing.T) {
	svc, dataDir := newTestService(t, &stubTranscoder{})

	svc.Restart("u2")
	if _, err := svc.HandleText("u2", "Bob"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Session is awaiting age; audio must be rejected without touching disk.
	_, err := svc.HandleAudio(context.Background(), "u2", "file-2", "voice.ogg", strings.NewReader("ogg"))
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if left := uploadsLeft(t, dataDir); len(left) != 0 {
		t.Fatalf("rejected submission wrote files: %v", left)
	}
}

func TestHandleAudioMissingSession(t *testing.T) {
	svc, _ := newTestService(t, &stubTranscoder{})

	_, err := svc.HandleAudio(context.Background(), "ghost", "f", "voice.ogg", strings.NewReader("ogg"))
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestHandleAudioTranscodeFailure(t *testing.T) {
	svc, dataDir := newTestService(t, &stubTranscoder{fail: true})
	advanceToAudio(t, svc, "u3")

	_, err := svc.HandleAudio(context.Background(), "u3", "file-3", "voice.ogg", strings.NewReader("corrupt"))
	var transcodeErr *domain.TranscodeError
	if !errors.As(err, &transcodeErr) {
		t.Fatalf("expected TranscodeError, got %v", err)
	}

	// Session may retry the same step; nothing is left on disk.
	session, _ := svc.Session("u3")
	if session.Step != domain.StepAwaitingAudio {
		t.Fatalf("step = %s, want %s", session.Step, domain.StepAwaitingAudio)
	}
	if left := uploadsLeft(t, dataDir); len(left) != 0 {
		t.Fatalf("failed submission left artifacts: %v", left)
	}

	// The in-flight mark is cleared, so the retry reaches the transcoder
	// again rather than being rejected as busy.
	_, err = svc.HandleAudio(context.Background(), "u3", "file-3", "voice.ogg", strings.NewReader("corrupt"))
	if !errors.As(err, &transcodeErr) {
		t.Fatalf("retry: expected TranscodeError, got %v", err)
	}
}

func TestHandleAudioSerializedPerSession(t *testing.T) {
	block := make(chan struct{})
	svc, _ := newTestService(t, &stubTranscoder{block: block})
	advanceToAudio(t, svc, "u4")

	done := make(chan error, 1)
	go func() {
		_, err := svc.HandleAudio(context.Background(), "u4", "file-4", "voice.ogg", strings.NewReader("ogg"))
		done <- err
	}()

	// Wait for the first submission to reach the transcoder.
	time.Sleep(50 * time.Millisecond)

	_, err := svc.HandleAudio(context.Background(), "u4", "file-5", "voice.ogg", strings.NewReader("ogg"))
	if !errors.Is(err, domain.ErrPipelineBusy) {
		t.Fatalf("expected ErrPipelineBusy, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
}

func TestRestartDuringPipelineWins(t *testing.T) {
	block := make(chan struct{})
	svc, _ := newTestService(t, &stubTranscoder{block: block})
	advanceToAudio(t, svc, "u6")

	done := make(chan error, 1)
	go func() {
		_, err := svc.HandleAudio(context.Background(), "u6", "file-6", "voice.ogg", strings.NewReader("ogg"))
		done <- err
	}()

	// Wait for the submission to reach the transcoder, then restart.
	time.Sleep(50 * time.Millisecond)
	session := svc.Restart("u6")
	if session.Step != domain.StepAwaitingName {
		t.Fatalf("restart step = %s, want %s", session.Step, domain.StepAwaitingName)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	// The finished pipeline must not override the explicit restart.
	session, _ = svc.Session("u6")
	if session.Step != domain.StepAwaitingName {
		t.Fatalf("step after pipeline = %s, want %s", session.Step, domain.StepAwaitingName)
	}
	if session.Name != "" {
		t.Fatalf("restart did not clear fields: %+v", session)
	}
}

func TestRestartClearsFieldsMidFlow(t *testing.T) {
	svc, _ := newTestService(t, &stubTranscoder{})
	advanceToAudio(t, svc, "u5")

	session := svc.Restart("u5")
	if session.Step != domain.StepAwaitingName || session.Name != "" || session.AppointmentID != "" {
		t.Fatalf("restart did not clear session: %+v", session)
	}
}
