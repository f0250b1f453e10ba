package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// ShareService issues signed, expiring pull links for generated reports, for
// transports that download instead of receiving the document inline.
type ShareService struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

func NewShareService(secret, baseURL string, ttl time.Duration) *ShareService {
	return &ShareService{secret: secret, baseURL: baseURL, ttl: ttl}
}

// Generate returns a signed URL for the submission's report and its expiry.
func (s *ShareService) Generate(submissionID string) (string, time.Time) {
	expiresAt := time.Now().Add(s.ttl)
	path := fmt.Sprintf("/reports/%s", submissionID)
	signed := fmt.Sprintf("%s?exp=%d&sig=%s", path, expiresAt.Unix(), s.sign(path, expiresAt.Unix()))
	return s.baseURL + signed, expiresAt
}

// Validate checks a presented signature against the request path and expiry.
func (s *ShareService) Validate(path string, expiresAt int64, signature string) bool {
	expected := s.sign(path, expiresAt)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *ShareService) sign(path string, expiresAt int64) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(fmt.Sprintf("%s:%d", path, expiresAt)))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}
