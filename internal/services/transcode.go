package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

// Transcoder converts a compressed audio container into the fixed decodable
// waveform format at outPath.
type Transcoder interface {
	Convert(ctx context.Context, rawPath, outPath string) error
}

// FFmpegTranscoder shells out to ffmpeg to produce 16 kHz mono PCM-16 WAV.
type FFmpegTranscoder struct {
	Binary     string
	SampleRate int
}

func NewFFmpegTranscoder(binary string, sampleRate int) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &FFmpegTranscoder{Binary: binary, SampleRate: sampleRate}
}

func (t *FFmpegTranscoder) Convert(ctx context.Context, rawPath, outPath string) error {
	if _, err := exec.LookPath(t.Binary); err != nil {
		return &domain.TranscodeError{Path: rawPath, Err: fmt.Errorf("%s not found in PATH: %w", t.Binary, err)}
	}

	// A stale target would make ffmpeg's -y mask a silent failure.
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.TranscodeError{Path: rawPath, Err: fmt.Errorf("clear stale output: %w", err)}
	}

	// -map_metadata -1 and bitexact muxing keep the output a plain fmt+data
	// WAV; without them ffmpeg inserts a LIST/INFO chunk with its encoder tag.
	args := []string{
		"-y",
		"-i", rawPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(t.SampleRate),
		"-acodec", "pcm_s16le",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		outPath,
	}

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &domain.TranscodeError{
			Path: rawPath,
			Err:  fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	// Absence of the output after a clean exit is itself the failure signal.
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return &domain.TranscodeError{Path: rawPath}
	}
	return nil
}
