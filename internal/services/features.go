package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/audio"
	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

// Pitch detection bounds, C2..C7. These bound the cepstral quefrency search
// only; classification thresholds live in the policy.
const (
	pitchMinHz = 65.41
	pitchMaxHz = 2093.0

	frameSeconds = 0.025
	hopSeconds   = 0.010
)

// Measurements are the six acoustic values a provider supplies per
// submission. Each is independent and bounded by the provider's documented
// range.
type Measurements struct {
	Jitter           float64
	Shimmer          float64
	HarmonicRatio    float64
	VoicePeriod      float64
	VoicedRatio      float64
	FormantFrequency float64
}

// MeasurementProvider supplies the measurements not yet derived from the
// waveform itself. Implementations must stay total and in range.
type MeasurementProvider interface {
	Sample() Measurements
}

// RandomMeasurementProvider draws each measurement uniformly from its
// documented range. It stands in for a real perturbation analysis and is the
// piece to swap once one exists.
type RandomMeasurementProvider struct {
	rng *rand.Rand
}

func NewRandomMeasurementProvider() *RandomMeasurementProvider {
	seed := uint64(time.Now().UnixNano())
	return &RandomMeasurementProvider{rng: rand.New(rand.NewPCG(seed, seed>>1))}
}

// NewSeededMeasurementProvider fixes the random source, for tests.
func NewSeededMeasurementProvider(seed uint64) *RandomMeasurementProvider {
	return &RandomMeasurementProvider{rng: rand.New(rand.NewPCG(seed, seed+1))}
}

func (p *RandomMeasurementProvider) Sample() Measurements {
	uniform := func(lo, hi float64) float64 {
		return lo + p.rng.Float64()*(hi-lo)
	}
	return Measurements{
		Jitter:           uniform(0, 3),
		Shimmer:          uniform(0, 5),
		HarmonicRatio:    uniform(0, 0.3),
		VoicePeriod:      uniform(0.002, 0.006),
		VoicedRatio:      uniform(0.3, 0.9),
		FormantFrequency: uniform(600, 1800),
	}
}

// FeatureExtractor computes the eight-measurement vector from a waveform
// file: a short-time cepstral analysis yields the pitch track (and with it
// fundamental frequency mean/std), the provider supplies the rest.
type FeatureExtractor struct {
	provider MeasurementProvider
}

func NewFeatureExtractor(provider MeasurementProvider) *FeatureExtractor {
	if provider == nil {
		provider = NewRandomMeasurementProvider()
	}
	return &FeatureExtractor{provider: provider}
}

// Extract is total for any decodable non-empty waveform. Silence simply
// yields an empty pitch track (mean/std of zero).
func (e *FeatureExtractor) Extract(wavPath string) (domain.FeatureVector, error) {
	wave, err := audio.DecodeFile(wavPath)
	if err != nil {
		return domain.FeatureVector{}, &domain.ExtractionError{Path: wavPath, Err: err}
	}
	if len(wave.Samples) == 0 {
		return domain.FeatureVector{}, &domain.ExtractionError{Path: wavPath, Err: fmt.Errorf("waveform is empty")}
	}

	f0Mean, f0Std := pitchTrack(wave)
	m := e.provider.Sample()

	return domain.FeatureVector{
		F0Mean:           f0Mean,
		F0Std:            f0Std,
		Jitter:           m.Jitter,
		Shimmer:          m.Shimmer,
		HarmonicRatio:    m.HarmonicRatio,
		VoicePeriod:      m.VoicePeriod,
		VoicedRatio:      m.VoicedRatio,
		FormantFrequency: m.FormantFrequency,
	}, nil
}

// pitchTrack runs a frame-wise real-cepstrum analysis and returns the mean
// and standard deviation of the fundamental frequency over voiced frames.
// Frames are voiced when their log energy sits above the track average and a
// clear cepstral peak appears inside the quefrency band.
func pitchTrack(wave *audio.Waveform) (mean, std float64) {
	frameLen := int(frameSeconds * float64(wave.SampleRate))
	hopLen := int(hopSeconds * float64(wave.SampleRate))
	if frameLen < 2 || hopLen < 1 || len(wave.Samples) < frameLen {
		return 0, 0
	}

	fftLen := nextPow2(frameLen)
	fft := fourier.NewFFT(fftLen)
	window := hamming(frameLen)

	// Quefrency search band derived from the pitch bounds.
	qMin := int(float64(wave.SampleRate) / pitchMaxHz)
	qMax := int(float64(wave.SampleRate) / pitchMinHz)
	if qMin < 2 {
		qMin = 2
	}
	if qMax >= fftLen/2 {
		qMax = fftLen/2 - 1
	}
	if qMax <= qMin {
		return 0, 0
	}

	type frameResult struct {
		energy float64
		peak   float64
		f0     float64
	}

	var frames []frameResult
	buf := make([]float64, fftLen)
	coeffs := make([]complex128, fftLen/2+1)
	logCoeffs := make([]complex128, fftLen/2+1)
	ceps := make([]float64, fftLen)

	for start := 0; start+frameLen <= len(wave.Samples); start += hopLen {
		for i := 0; i < frameLen; i++ {
			buf[i] = wave.Samples[start+i] * window[i]
		}
		for i := frameLen; i < fftLen; i++ {
			buf[i] = 0
		}

		// Real cepstrum: inverse transform of the log magnitude spectrum.
		fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			mag := math.Hypot(real(c), imag(c))
			logCoeffs[k] = complex(math.Log(mag+1e-10), 0)
		}
		fft.Sequence(ceps, logCoeffs)
		for q := range ceps {
			ceps[q] /= float64(fftLen)
		}

		peakIdx, peakVal := qMin, math.Inf(-1)
		for q := qMin; q <= qMax; q++ {
			if ceps[q] > peakVal {
				peakVal = ceps[q]
				peakIdx = q
			}
		}

		frames = append(frames, frameResult{
			energy: ceps[0],
			peak:   peakVal,
			f0:     float64(wave.SampleRate) / float64(peakIdx),
		})
	}

	if len(frames) == 0 {
		return 0, 0
	}

	var energySum float64
	for _, f := range frames {
		energySum += f.energy
	}
	energyMean := energySum / float64(len(frames))

	var f0s []float64
	for _, f := range frames {
		if f.energy > energyMean && f.peak > 0 {
			f0s = append(f0s, f.f0)
		}
	}
	if len(f0s) == 0 {
		return 0, 0
	}

	mean = stat.Mean(f0s, nil)
	if len(f0s) > 1 {
		std = stat.StdDev(f0s, nil)
	}
	return mean, std
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
