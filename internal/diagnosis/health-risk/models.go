package healthrisk

import (
	"time"

	"inquiry-core/internal/models"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Timeframe string

const (
	TimeframeImmediate Timeframe = "immediate"
	TimeframeShortTerm Timeframe = "short_term"
	TimeframeLongTerm  Timeframe = "long_term"
)

func (t Timeframe) urgency() int {
	switch t {
	case TimeframeImmediate:
		return 2
	case TimeframeShortTerm:
		return 1
	default:
		return 0
	}
}

// Sources of a risk.
const (
	SourceSymptom      = "symptom"
	SourceHistory      = "history"
	SourceConstitution = "constitution"
)

type Risk struct {
	Name                string    `json:"name"`
	Probability         float64   `json:"probability"`
	Severity            Severity  `json:"severity"`
	Timeframe           Timeframe `json:"timeframe"`
	ContributingFactors []string  `json:"contributingFactors"`
	Sources             []string  `json:"sources"`
}

type Strategy struct {
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description" yaml:"description"`
	ActionItems   []string `json:"actionItems" yaml:"action_items"`
	Targets       []string `json:"targets" yaml:"-"`
	Effectiveness float64  `json:"effectiveness" yaml:"effectiveness"`
}

// Assessment splits the risks into immediate (including short term) and long
// term ones, each ranked by probability.
type Assessment struct {
	ImmediateRisks       []Risk     `json:"immediateRisks"`
	LongTermRisks        []Risk     `json:"longTermRisks"`
	PreventionStrategies []Strategy `json:"preventionStrategies"`
	OverallScore         float64    `json:"overallScore"`
	Confidence           float64    `json:"confidence"`
	AssessedAt           time.Time  `json:"assessedAt"`
}

type Input struct {
	Symptoms []models.Symptom      `json:"symptoms"`
	Patient  *models.PatientContext `json:"patient,omitempty"`
	// RiskFactors are the conditions and habits reported during the
	// conversation. They count as the patient's own history.
	RiskFactors []string `json:"riskFactors,omitempty"`
}

type Output struct {
	Assessment *Assessment `json:"assessment"`
	// ConstitutionUnavailable is set when the constitution lookup failed and
	// the assessment was made without it.
	ConstitutionUnavailable bool `json:"constitutionUnavailable,omitempty"`
}
