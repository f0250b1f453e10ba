package http

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/config"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/metrics"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/services"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	stop   chan struct{}
}

func NewServer(cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	files, err := storage.NewFileStore(cfg.DataDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	sessions := storage.NewSessionRepository(cfg.SessionTTL)

	policy := services.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = services.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load classifier policy: %w", err)
		}
		log.Printf("classifier policy loaded from %s", cfg.PolicyPath)
	}

	m := metrics.New()

	svc := services.NewSessionService(
		sessions,
		files,
		services.NewFFmpegTranscoder(cfg.FFmpegBinary, cfg.SampleRate),
		services.NewFeatureExtractor(nil),
		services.NewClassifier(policy),
		services.NewReportBuilder(services.DefaultPageTemplate(cfg.LogoPath)),
		m,
		cfg.PipelineTimeout,
	)
	share := services.NewShareService(cfg.ShareSecret, cfg.BaseURL, cfg.ShareTTL)

	stop := make(chan struct{})
	sessions.StartSweeper(cfg.SweepInterval, stop, func(remaining int) {
		m.ActiveSessions.Set(float64(remaining))
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(m))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(svc, share, m)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg, stop: stop}, nil
}

func (s *Server) Run() error {
	defer close(s.stop)
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}
