package domain

import "time"

// Step identifies where a session is in the intake conversation.
type Step string

const (
	StepAwaitingName          Step = "awaiting_name"
	StepAwaitingAge           Step = "awaiting_age"
	StepAwaitingAppointmentID Step = "awaiting_appointment_id"
	StepAwaitingAudio         Step = "awaiting_audio"
	StepComplete              Step = "complete"
)

// Session tracks one user's progress through the intake steps. Fields are
// populated one per step and never mutated once the step has advanced.
type Session struct {
	ID            string
	Step          Step
	Name          string
	Age           string
	AppointmentID string
	UpdatedAt     time.Time
}

// Patient is the identity block rendered into the report.
type Patient struct {
	Name          string
	Age           string
	AppointmentID string
}

func (s *Session) Patient() Patient {
	return Patient{Name: s.Name, Age: s.Age, AppointmentID: s.AppointmentID}
}

// HasAllFields reports whether every text-collection step has been answered.
func (s *Session) HasAllFields() bool {
	return s.Name != "" && s.Age != "" && s.AppointmentID != ""
}

// FeatureVector holds the eight acoustic measurements derived from one
// waveform. Values are immutable once extracted.
type FeatureVector struct {
	F0Mean           float64
	F0Std            float64
	Jitter           float64
	Shimmer          float64
	HarmonicRatio    float64
	VoicePeriod      float64
	VoicedRatio      float64
	FormantFrequency float64
}

// Measurement is one display row of the report's acoustic table.
type Measurement struct {
	Name      string
	Value     float64
	RangeLow  float64
	RangeHigh float64
}

// Measurements returns the vector as ordered table rows with their
// display-only normal ranges. The ranges never influence classification.
func (v FeatureVector) Measurements() []Measurement {
	return []Measurement{
		{Name: "Fundamental Frequency (Mean)", Value: v.F0Mean, RangeLow: 85, RangeHigh: 255},
		{Name: "Fundamental Frequency (Std)", Value: v.F0Std, RangeLow: 0, RangeHigh: 20},
		{Name: "Jitter", Value: v.Jitter, RangeLow: 0, RangeHigh: 2.2},
		{Name: "Shimmer", Value: v.Shimmer, RangeLow: 0, RangeHigh: 3.81},
		{Name: "Harmonic Ratio", Value: v.HarmonicRatio, RangeLow: 0.15, RangeHigh: 0.25},
		{Name: "Voice Period", Value: v.VoicePeriod, RangeLow: 0.003, RangeHigh: 0.005},
		{Name: "Voiced Segments Ratio", Value: v.VoicedRatio, RangeLow: 0.4, RangeHigh: 0.8},
		{Name: "Formant Frequency", Value: v.FormantFrequency, RangeLow: 500, RangeHigh: 2000},
	}
}

// Diagnosis is the classifier output. Confidence is always within [60, 99].
type Diagnosis struct {
	Label      string
	Confidence float64
}

// Report describes a finished submission handed back to the transport layer.
type Report struct {
	SubmissionID string
	Path         string
	Diagnosis    Diagnosis
	Vector       FeatureVector
	GeneratedAt  time.Time
}
