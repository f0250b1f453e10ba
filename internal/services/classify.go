package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/its-mkarmakar/Hack4Bengal-4.0/internal/domain"
)

// Confidence bounds every diagnosis is clamped to, whatever the band
// formulas produce.
const (
	confidenceFloor = 60
	confidenceCeil  = 99
)

// Band is one rule of the ordered cascade. The first band whose Matches
// returns true determines the label and confidence formula.
type Band struct {
	Name       string  `yaml:"name"`
	Label      string  `yaml:"label"`
	JitterGT   float64 `yaml:"jitter_gt"`
	ShimmerGT  float64 `yaml:"shimmer_gt"`
	HarmonicLT float64 `yaml:"harmonic_lt"`
	F0MeanLT   float64 `yaml:"f0_mean_lt"`
	VoicedLT   float64 `yaml:"voiced_lt"`
	FormantGT  float64 `yaml:"formant_gt"`

	// Confidence formula: base + jitter/shimmer/formant terms, see score.
	Base          float64 `yaml:"base"`
	JitterWeight  float64 `yaml:"jitter_weight"`
	ShimmerWeight float64 `yaml:"shimmer_weight"`
	FormantWeight float64 `yaml:"formant_weight"`
	FormantRef    float64 `yaml:"formant_ref"`
}

// Matches reports whether any of the band's enabled thresholds trips. Zero
// thresholds are disabled so policy files only list the conditions they use.
func (b Band) Matches(v domain.FeatureVector) bool {
	if b.JitterGT > 0 && v.Jitter > b.JitterGT {
		return true
	}
	if b.ShimmerGT > 0 && v.Shimmer > b.ShimmerGT {
		return true
	}
	if b.HarmonicLT > 0 && v.HarmonicRatio < b.HarmonicLT {
		return true
	}
	// A zero pitch mean means no voiced frames were found; an unknown pitch
	// must not read as pathologically low.
	if b.F0MeanLT > 0 && v.F0Mean > 0 && v.F0Mean < b.F0MeanLT {
		return true
	}
	if b.VoicedLT > 0 && v.VoicedRatio < b.VoicedLT {
		return true
	}
	if b.FormantGT > 0 && v.FormantFrequency > b.FormantGT {
		return true
	}
	return false
}

func (b Band) score(v domain.FeatureVector) float64 {
	score := b.Base
	score += b.JitterWeight * v.Jitter
	score += b.ShimmerWeight * v.Shimmer
	if b.FormantWeight != 0 {
		score += b.FormantWeight * (b.FormantRef - v.FormantFrequency)
	}
	return score
}

// Policy is the replaceable classification rule set: an ordered cascade plus
// a default band applied when nothing matches.
type Policy struct {
	Bands   []Band `yaml:"bands"`
	Default Band   `yaml:"default"`
}

// DefaultPolicy mirrors the reference thresholds. Every band currently
// carries the same label; that mirrors the reference behavior and is exactly
// why the labels live in the policy rather than the code.
func DefaultPolicy() Policy {
	return Policy{
		Bands: []Band{
			{
				Name:          "perturbation",
				Label:         "Healthy",
				JitterGT:      2.2,
				ShimmerGT:     3.81,
				HarmonicLT:    0.15,
				F0MeanLT:      85,
				VoicedLT:      0.4,
				Base:          85,
				JitterWeight:  0.2,
				ShimmerWeight: 0.2,
			},
			{
				Name:          "resonance",
				Label:         "Healthy",
				ShimmerGT:     4,
				VoicedLT:      0.35,
				FormantGT:     1800,
				Base:          80,
				ShimmerWeight: 1,
				FormantWeight: 0.005,
				FormantRef:    2000,
			},
		},
		Default: Band{
			Name:          "default",
			Label:         "Healthy",
			Base:          90,
			JitterWeight:  -0.2,
			ShimmerWeight: -0.2,
		},
	}
}

// LoadPolicy reads a YAML policy file. Bands without a label fall back to
// the default band's label.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}

	for i := range p.Bands {
		if p.Bands[i].Label == "" {
			p.Bands[i].Label = p.Default.Label
		}
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.Default.Label == "" {
		return fmt.Errorf("default band must carry a label")
	}
	for i, b := range p.Bands {
		if b.Base <= 0 {
			return fmt.Errorf("band %d (%s): base confidence must be positive", i, b.Name)
		}
	}
	if p.Default.Base <= 0 {
		return fmt.Errorf("default band: base confidence must be positive")
	}
	return nil
}

// Classifier maps a feature vector to a diagnosis. Total: every vector
// produces a label and a clamped confidence.
type Classifier struct {
	policy Policy
}

func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

func (c *Classifier) Classify(v domain.FeatureVector) domain.Diagnosis {
	band := c.policy.Default
	for _, b := range c.policy.Bands {
		if b.Matches(v) {
			band = b
			break
		}
	}

	confidence := band.score(v)
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}
	if confidence > confidenceCeil {
		confidence = confidenceCeil
	}

	return domain.Diagnosis{Label: band.Label, Confidence: confidence}
}
