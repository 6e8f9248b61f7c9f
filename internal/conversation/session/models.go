package session

import (
	"context"
	"time"

	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	diagnosticreasoning "inquiry-core/internal/diagnosis/diagnostic-reasoning"
	healthrisk "inquiry-core/internal/diagnosis/health-risk"
	symptomextraction "inquiry-core/internal/extraction/symptom-extraction"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"
)

type Extractor interface {
	Execute(ctx context.Context, input *symptomextraction.Input) (*symptomextraction.Output, error)
}

type GraphAnalyzer interface {
	Execute(ctx context.Context, input *knowledgegraph.Input) (*knowledgegraph.Output, error)
}

type Diagnoser interface {
	Execute(ctx context.Context, input *diagnosticreasoning.Input) (*diagnosticreasoning.Output, error)
}

type RiskAssessor interface {
	Execute(ctx context.Context, input *healthrisk.Input) (*healthrisk.Output, error)
}

type StartRequest struct {
	PatientID   string                 `json:"patientId"`
	Patient     *models.PatientContext `json:"patient,omitempty"`
	InitialData map[string]string      `json:"initialData,omitempty"`
}

type StartResult struct {
	SessionID string                    `json:"sessionId"`
	Stage     flowcontroller.Stage      `json:"stage"`
	Questions []flowcontroller.Question `json:"questions"`
	// Decision is the flow decision the session opened with.
	Decision          *flowcontroller.Decision `json:"decision,omitempty"`
	EmergencyDetected bool                     `json:"emergencyDetected"`
	CreatedAt         time.Time                `json:"createdAt"`
}

type TurnResult struct {
	SessionID string                    `json:"sessionId"`
	Decision  *flowcontroller.Decision  `json:"decision"`
	Stage     flowcontroller.Stage      `json:"stage"`
	Questions []flowcontroller.Question `json:"questions"`

	// Symptoms and NegatedSymptoms are what this answer contributed.
	Symptoms        []models.Symptom `json:"symptoms"`
	NegatedSymptoms []string         `json:"negatedSymptoms,omitempty"`

	// ExtractionDegraded is set when extraction failed or timed out and the
	// answer was recorded without it.
	ExtractionDegraded bool `json:"extractionDegraded,omitempty"`
	EmergencyDetected  bool `json:"emergencyDetected"`
	Concluded          bool `json:"concluded"`
}

// DiagnosisReport combines the differential with the knowledge graph view.
// GraphUnavailable marks a report built from the rule-based engine alone.
type DiagnosisReport struct {
	SessionID           string                             `json:"sessionId"`
	Stage               flowcontroller.Stage               `json:"stage"`
	Assessment          *diagnosticreasoning.Assessment    `json:"assessment"`
	Syndromes           []knowledgegraph.Candidate         `json:"syndromes"`
	Remedies            []knowledgegraph.Remedy            `json:"remedies"`
	Constitutions       []knowledgegraph.ConstitutionMatch `json:"constitutions,omitempty"`
	TreatmentPrinciples []string                           `json:"treatmentPrinciples,omitempty"`
	HealthRisk          *healthrisk.Assessment             `json:"healthRisk,omitempty"`
	GraphUnavailable    bool                               `json:"graphUnavailable"`
	EmergencyDetected   bool                               `json:"emergencyDetected"`
}
