package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/metrics"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/storage"
)

// SessionService drives the intake state machine and, on the final step,
// runs the analysis pipeline: save upload, transcode, extract, classify,
// render. Raw and transcoded artifacts are released on every exit path; the
// report survives until the transport confirms delivery.
type SessionService struct {
	sessions   *storage.SessionRepository
	files      *storage.FileStore
	transcoder Transcoder
	extractor  *FeatureExtractor
	classifier *Classifier
	reports    *ReportBuilder
	metrics    *metrics.Metrics
	timeout    time.Duration
}

func NewSessionService(
	sessions *storage.SessionRepository,
	files *storage.FileStore,
	transcoder Transcoder,
	extractor *FeatureExtractor,
	classifier *Classifier,
	reports *ReportBuilder,
	m *metrics.Metrics,
	timeout time.Duration,
) *SessionService {
	return &SessionService{
		sessions:   sessions,
		files:      files,
		transcoder: transcoder,
		extractor:  extractor,
		classifier: classifier,
		reports:    reports,
		metrics:    m,
		timeout:    timeout,
	}
}

// Restart resets or creates the session at the first intake step. It always
// succeeds, including mid-conversation and after completion.
func (s *SessionService) Restart(sessionID string) domain.Session {
	session := s.sessions.Reset(sessionID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return session
}

// Session returns the current session snapshot, if one exists.
func (s *SessionService) Session(sessionID string) (domain.Session, bool) {
	return s.sessions.Snapshot(sessionID)
}

// HandleText stores the answer for the current text step and advances the
// machine one step. Sessions that are absent, awaiting audio, or complete
// reject the input without mutating any field.
func (s *SessionService) HandleText(sessionID, text string) (domain.Step, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", domain.ErrInvalidState)
	}

	var next domain.Step
	err := s.sessions.Update(sessionID, func(session *domain.Session) error {
		switch session.Step {
		case domain.StepAwaitingName:
			session.Name = text
			session.Step = domain.StepAwaitingAge
		case domain.StepAwaitingAge:
			session.Age = text
			session.Step = domain.StepAwaitingAppointmentID
		case domain.StepAwaitingAppointmentID:
			session.AppointmentID = text
			session.Step = domain.StepAwaitingAudio
		default:
			return domain.ErrInvalidState
		}
		next = session.Step
		return nil
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// HandleAudio accepts the audio submission for a session awaiting one and
// runs the full pipeline synchronously. On success the session transitions
// to complete; on any pipeline failure it stays awaiting audio so the user
// can resubmit. Concurrent submissions for the same session are rejected;
// other sessions are unaffected.
func (s *SessionService) HandleAudio(ctx context.Context, sessionID, submissionID, filename string, upload io.Reader) (domain.Report, error) {
	session, err := s.sessions.BeginSubmission(sessionID, func(session *domain.Session) error {
		if session.Step != domain.StepAwaitingAudio {
			return domain.ErrInvalidState
		}
		if !session.HasAllFields() {
			return domain.ErrPreconditionFailed
		}
		return nil
	})
	if err != nil {
		return domain.Report{}, err
	}

	s.metrics.SubmissionsTotal.Inc()

	report, err := s.runPipeline(ctx, session, submissionID, filename, upload)

	// A restart issued while the pipeline ran has already moved the session
	// back to the first step; only a session still awaiting audio completes.
	s.sessions.EndSubmission(sessionID, func(session *domain.Session) {
		if err == nil && session.Step == domain.StepAwaitingAudio {
			session.Step = domain.StepComplete
		}
	})

	if err != nil {
		log.Printf("session %s: pipeline failed: %v", sessionID, err)
		return domain.Report{}, err
	}

	log.Printf("session %s: report ready at %s (%s %.2f%%)",
		sessionID, report.Path, report.Diagnosis.Label, report.Diagnosis.Confidence)
	return report, nil
}

// ReleaseReport deletes the report file after the transport has delivered it.
func (s *SessionService) ReleaseReport(report domain.Report) error {
	return s.files.ReleaseReport(storage.Artifacts{ReportPath: report.Path})
}

// ReportPath resolves the report location for a submission, for pull-style
// delivery routes.
func (s *SessionService) ReportPath(submissionID string) string {
	return s.files.ReportPath(submissionID)
}

func (s *SessionService) runPipeline(ctx context.Context, session domain.Session, submissionID, filename string, upload io.Reader) (domain.Report, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	artifacts, err := s.files.Acquire(submissionID, filename)
	if err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("acquire").Inc()
		return domain.Report{}, err
	}

	// Raw and transcoded files never outlive the pipeline, whatever happens.
	defer func() {
		if rerr := s.files.Release(artifacts); rerr != nil {
			log.Printf("submission %s: release artifacts: %v", artifacts.SubmissionID, rerr)
		}
	}()

	if err := s.files.SaveUpload(artifacts, upload); err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("upload").Inc()
		return domain.Report{}, err
	}

	if err := s.timed("transcode", func() error {
		return s.transcoder.Convert(ctx, artifacts.RawPath, artifacts.TranscodedPath)
	}); err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("transcode").Inc()
		return domain.Report{}, err
	}

	var vector domain.FeatureVector
	if err := s.timed("extract", func() error {
		var eerr error
		vector, eerr = s.extractor.Extract(artifacts.TranscodedPath)
		return eerr
	}); err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("extract").Inc()
		return domain.Report{}, err
	}

	if err := ctx.Err(); err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("timeout").Inc()
		return domain.Report{}, &domain.ExtractionError{Path: artifacts.TranscodedPath, Err: err}
	}

	diagnosis := s.classifier.Classify(vector)

	if err := s.timed("render", func() error {
		return s.reports.Render(session.Patient(), vector, diagnosis, artifacts.ReportPath)
	}); err != nil {
		s.metrics.SubmissionFailures.WithLabelValues("render").Inc()
		return domain.Report{}, err
	}

	return domain.Report{
		SubmissionID: artifacts.SubmissionID,
		Path:         artifacts.ReportPath,
		Diagnosis:    diagnosis,
		Vector:       vector,
		GeneratedAt:  time.Now(),
	}, nil
}

func (s *SessionService) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}
