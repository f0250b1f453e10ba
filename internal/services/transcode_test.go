package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

func TestFFmpegTranscoderDefaults(t *testing.T) {
	tc := NewFFmpegTranscoder("", 0)
	if tc.Binary != "ffmpeg" {
		t.Fatalf("binary = %q, want ffmpeg", tc.Binary)
	}
	if tc.SampleRate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", tc.SampleRate)
	}
}

func TestFFmpegTranscoderMissingBinary(t *testing.T) {
	tc := NewFFmpegTranscoder("definitely-not-a-real-binary", 16000)

	dir := t.TempDir()
	err := tc.Convert(context.Background(), filepath.Join(dir, "in.ogg"), filepath.Join(dir, "out.wav"))

	var transcodeErr *domain.TranscodeError
	if !errors.As(err, &transcodeErr) {
		t.Fatalf("expected TranscodeError, got %v", err)
	}
}
