package diagnosticreasoning

import (
	"time"

	"inquiry-core/internal/models"
)

// ConfidenceTier grades a differential by its probability.
type ConfidenceTier string

const (
	ConfidenceVeryLow  ConfidenceTier = "very_low"
	ConfidenceLow      ConfidenceTier = "low"
	ConfidenceModerate ConfidenceTier = "moderate"
	ConfidenceHigh     ConfidenceTier = "high"
	ConfidenceVeryHigh ConfidenceTier = "very_high"
)

var confidenceOrder = []ConfidenceTier{
	ConfidenceVeryLow, ConfidenceLow, ConfidenceModerate, ConfidenceHigh, ConfidenceVeryHigh,
}

func (c ConfidenceTier) rank() int {
	for i, t := range confidenceOrder {
		if t == c {
			return i
		}
	}
	return -1
}

func (c ConfidenceTier) bump() ConfidenceTier {
	if i := c.rank(); i >= 0 && i < len(confidenceOrder)-1 {
		return confidenceOrder[i+1]
	}
	return c
}

// AtLeast reports whether c is the same tier as other or above it.
func (c ConfidenceTier) AtLeast(other ConfidenceTier) bool {
	return c.rank() >= other.rank()
}

type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = []RiskLevel{RiskMinimal, RiskLow, RiskModerate, RiskHigh, RiskCritical}

func (r RiskLevel) rank() int {
	for i, l := range riskOrder {
		if l == r {
			return i
		}
	}
	return -1
}

func (r RiskLevel) raise() RiskLevel {
	if i := r.rank(); i >= 0 && i < len(riskOrder)-1 {
		return riskOrder[i+1]
	}
	return r
}

func maxRisk(a, b RiskLevel) RiskLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

type RecommendationType string

const (
	RecommendImmediateAttention RecommendationType = "immediate_medical_attention"
	RecommendUrgentEvaluation   RecommendationType = "urgent_evaluation"
	RecommendAppointment        RecommendationType = "schedule_appointment"
	RecommendMonitor            RecommendationType = "monitor_symptoms"
	RecommendLifestyle          RecommendationType = "lifestyle_changes"
	RecommendMedication         RecommendationType = "medication"
	RecommendFurtherTesting     RecommendationType = "further_testing"
)

// DiagnosisResult is one entry of the differential. Probability is an
// un-normalised score in [0,1]: entries are independent and do not sum to 1.
type DiagnosisResult struct {
	DiseaseID          string         `json:"diseaseId"`
	Name               string         `json:"name"`
	ICDCode            string         `json:"icdCode,omitempty"`
	Category           string         `json:"category,omitempty"`
	Probability        float64        `json:"probability"`
	Confidence         ConfidenceTier `json:"confidence"`
	SupportingSymptoms []string       `json:"supportingSymptoms"`
	MissingSymptoms    []string       `json:"missingSymptoms,omitempty"`
	RequiredMatched    bool           `json:"requiredMatched"`
	RiskLevel          RiskLevel      `json:"riskLevel"`
	Reasoning          string         `json:"reasoning"`
}

type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Description string             `json:"description"`
	Urgency     int                `json:"urgency"` // 1-10
	Rationale   string             `json:"rationale"`
	Actions     []string           `json:"actions,omitempty"`
	Timeframe   string             `json:"timeframe,omitempty"`

	// Source names the risk tier, rule or condition the advice came from.
	Source string `json:"source"`
}

type RuleMatch struct {
	Name     string             `json:"name"`
	Action   RecommendationType `json:"action"`
	Priority int                `json:"priority"`
}

// Assessment is the full result of one diagnostic run.
type Assessment struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patientId,omitempty"`
	Symptoms      []models.Symptom  `json:"symptoms"`
	Differentials []DiagnosisResult `json:"differentials"`
	Primary       *DiagnosisResult  `json:"primary,omitempty"`

	// Ambiguous is set when candidates exist but none clears the primary
	// thresholds. It is false when there is no candidate at all.
	Ambiguous       bool             `json:"ambiguous"`
	Recommendations []Recommendation `json:"recommendations"`
	TriggeredRules  []RuleMatch      `json:"triggeredRules,omitempty"`
	OverallRisk     RiskLevel        `json:"overallRisk"`
	Confidence      float64          `json:"confidence"`
	Summary         string           `json:"summary"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type Input struct {
	PatientID string                 `json:"patientId,omitempty"`
	Symptoms  []models.Symptom       `json:"symptoms"`
	Patient   *models.PatientContext `json:"patient,omitempty"`
}

type Output struct {
	Assessment *Assessment `json:"assessment"`
	Cached     bool        `json:"cached,omitempty"`

	// CacheUnavailable is set when the result cache could not be reached and
	// the assessment was computed without it.
	CacheUnavailable bool `json:"cacheUnavailable,omitempty"`
}
