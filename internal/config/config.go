package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	DataDir         string
	MaxUploadBytes  int64
	FFmpegBinary    string
	SampleRate      int
	LogoPath        string
	PolicyPath      string
	ShareSecret     string
	ShareTTL        time.Duration
	BaseURL         string
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	PipelineTimeout time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")
	cfg.FFmpegBinary = envOrDefault("FFMPEG_PATH", "ffmpeg")
	cfg.LogoPath = envOrDefault("LOGO_PATH", "assets/logo.png")
	cfg.PolicyPath = os.Getenv("POLICY_PATH")
	cfg.ShareSecret = envOrDefault("SHARE_SECRET", "change-me")
	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 25)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	sampleRate, err := parseIntEnv("SAMPLE_RATE", 16000)
	if err != nil {
		return Config{}, fmt.Errorf("parse SAMPLE_RATE: %w", err)
	}
	cfg.SampleRate = int(sampleRate)

	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	sessionTTLSeconds, err := parseIntEnv("SESSION_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TTL_SECONDS: %w", err)
	}
	cfg.SessionTTL = time.Duration(sessionTTLSeconds) * time.Second

	sweepSeconds, err := parseIntEnv("SESSION_SWEEP_SECONDS", 60)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_SWEEP_SECONDS: %w", err)
	}
	cfg.SweepInterval = time.Duration(sweepSeconds) * time.Second

	pipelineTimeoutSeconds, err := parseIntEnv("PIPELINE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Config{}, fmt.Errorf("parse PIPELINE_TIMEOUT_SECONDS: %w", err)
	}
	cfg.PipelineTimeout = time.Duration(pipelineTimeoutSeconds) * time.Second

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
