package http

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/metrics"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/services"
)

type API struct {
	sessions *services.SessionService
	share    *services.ShareService
	metrics  *metrics.Metrics
}

func NewAPI(sessions *services.SessionService, share *services.ShareService, m *metrics.Metrics) *API {
	return &API{sessions: sessions, share: share, metrics: m}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/sessions/:id/restart", api.handleRestart)
		apiGroup.POST("/sessions/:id/message", api.handleMessage)
		apiGroup.POST("/sessions/:id/audio", api.handleAudio)
		apiGroup.GET("/sessions/:id", api.handleGetSession)
	}

	r.GET("/reports/:id", api.handleServeReport)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(api.metrics.Registry(), promhttp.HandlerOpts{})))
}

var stepPrompts = map[domain.Step]string{
	domain.StepAwaitingName:          "To get started, may I have your full name?",
	domain.StepAwaitingAge:           "Thank you. Could you please provide your age?",
	domain.StepAwaitingAppointmentID: "Got it. Please enter your Appointment ID.",
	domain.StepAwaitingAudio:         "Now, please send a voice message so we can proceed with the analysis.",
	domain.StepComplete:              "Your analysis is complete. Send /restart to begin a new one.",
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleRestart(c *gin.Context) {
	session := a.sessions.Restart(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"step":   session.Step,
		"prompt": stepPrompts[session.Step],
	})
}

func (a *API) handleMessage(c *gin.Context) {
	var payload struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "missing text")
		return
	}

	step, err := a.sessions.HandleText(c.Param("id"), payload.Text)
	if err != nil {
		respondTaxonomy(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"step":   step,
		"prompt": stepPrompts[step],
	})
}

func (a *API) handleAudio(c *gin.Context) {
	sessionID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing audio file")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		log.Printf("session %s: open upload: %v", sessionID, err)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	// The inbound file handle doubles as the submission identifier when the
	// transport supplies one.
	submissionID := strings.TrimSpace(c.PostForm("file_id"))

	report, err := a.sessions.HandleAudio(c.Request.Context(), sessionID, submissionID, fileHeader.Filename, upload)
	if err != nil {
		respondTaxonomy(c, err)
		return
	}

	if c.PostForm("delivery") == "link" {
		url, expiresAt := a.share.Generate(report.SubmissionID)
		c.JSON(http.StatusOK, gin.H{
			"url":        url,
			"expiresAt":  expiresAt.UTC(),
			"label":      report.Diagnosis.Label,
			"confidence": report.Diagnosis.Confidence,
		})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(report.Path, filepath.Base(report.Path))

	// The attachment has been written; the report artifact is now released.
	if err := a.sessions.ReleaseReport(report); err != nil {
		log.Printf("session %s: release report: %v", sessionID, err)
	}
}

func (a *API) handleGetSession(c *gin.Context) {
	session, ok := a.sessions.Session(c.Param("id"))
	if !ok {
		respondMessage(c, http.StatusNotFound, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"step":   session.Step,
		"prompt": stepPrompts[session.Step],
	})
}

func (a *API) handleServeReport(c *gin.Context) {
	submissionID := c.Param("id")
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if expires < time.Now().Unix() {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}

	if !a.share.Validate(c.Request.URL.Path, expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	report := domain.Report{
		SubmissionID: submissionID,
		Path:         a.sessions.ReportPath(submissionID),
	}
	if _, err := os.Stat(report.Path); err != nil {
		respondMessage(c, http.StatusNotFound, "report not found")
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(report.Path, filepath.Base(report.Path))

	if err := a.sessions.ReleaseReport(report); err != nil {
		log.Printf("report %s: release after delivery: %v", submissionID, err)
	}
}

func respondTaxonomy(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var (
		transcodeErr  *domain.TranscodeError
		extractionErr *domain.ExtractionError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrPipelineBusy):
		status = http.StatusTooManyRequests
	case errors.As(err, &transcodeErr), errors.As(err, &extractionErr):
		status = http.StatusUnprocessableEntity
	}

	respondMessage(c, status, domain.FailureCategory(err))
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
