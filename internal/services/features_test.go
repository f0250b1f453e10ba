package services

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/audio"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

func writeWAV(t *testing.T, samples []int16, sampleRate int) string {
	t.Helper()
	data, err := audio.Encode(samples, sampleRate)
	if err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func checkProviderRanges(t *testing.T, v domain.FeatureVector) {
	t.Helper()
	ranges := []struct {
		name   string
		value  float64
		lo, hi float64
	}{
		{"jitter", v.Jitter, 0, 3},
		{"shimmer", v.Shimmer, 0, 5},
		{"harmonic ratio", v.HarmonicRatio, 0, 0.3},
		{"voice period", v.VoicePeriod, 0.002, 0.006},
		{"voiced ratio", v.VoicedRatio, 0.3, 0.9},
		{"formant frequency", v.FormantFrequency, 600, 1800},
	}
	for _, r := range ranges {
		if r.value < r.lo || r.value > r.hi {
			t.Errorf("%s = %f outside [%g, %g]", r.name, r.value, r.lo, r.hi)
		}
	}
}

func TestExtractSilentWaveform(t *testing.T) {
	// Two seconds of silence at the pipeline sample rate.
	path := writeWAV(t, make([]int16, 32000), 16000)

	e := NewFeatureExtractor(NewSeededMeasurementProvider(1))
	v, err := e.Extract(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	checkProviderRanges(t, v)
	if math.IsNaN(v.F0Mean) || math.IsNaN(v.F0Std) {
		t.Fatal("pitch statistics must not be NaN for silence")
	}
}

func TestExtractVoicedWaveform(t *testing.T) {
	// A 150 Hz pulse train over noise-floor silence: harmonically rich in the
	// first half so the voicing gate has both kinds of frames to separate.
	sampleRate := 16000
	samples := make([]int16, 2*sampleRate)
	period := sampleRate / 150
	for i := 0; i < sampleRate; i++ {
		if i%period == 0 {
			samples[i] = 16000
		}
	}

	e := NewFeatureExtractor(NewSeededMeasurementProvider(2))
	v, err := e.Extract(writeWAV(t, samples, sampleRate))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	checkProviderRanges(t, v)
	if v.F0Mean < 0 {
		t.Fatalf("f0 mean = %f, want non-negative", v.F0Mean)
	}
	if v.F0Std < 0 {
		t.Fatalf("f0 std = %f, want non-negative", v.F0Std)
	}
}

func TestExtractRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	e := NewFeatureExtractor(NewSeededMeasurementProvider(3))
	_, err := e.Extract(path)
	var extractionErr *domain.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractRejectsMissingFile(t *testing.T) {
	e := NewFeatureExtractor(NewSeededMeasurementProvider(4))
	_, err := e.Extract(filepath.Join(t.TempDir(), "missing.wav"))
	var extractionErr *domain.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestRandomProviderStaysBounded(t *testing.T) {
	p := NewSeededMeasurementProvider(5)
	for i := 0; i < 100; i++ {
		m := p.Sample()
		v := domain.FeatureVector{
			Jitter:           m.Jitter,
			Shimmer:          m.Shimmer,
			HarmonicRatio:    m.HarmonicRatio,
			VoicePeriod:      m.VoicePeriod,
			VoicedRatio:      m.VoicedRatio,
			FormantFrequency: m.FormantFrequency,
		}
		checkProviderRanges(t, v)
	}
}
