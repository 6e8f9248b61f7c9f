package models

import "time"

// SessionSummary is written to the archive when an inquiry session ends.
type SessionSummary struct {
	SessionID         string          `json:"sessionId" db:"session_id"`
	PatientID         string          `json:"patientId" db:"patient_id"`
	FinalStage        string          `json:"finalStage" db:"final_stage"`
	StageHistory      []string        `json:"stageHistory" db:"stage_history"`
	QuestionsAnswered int             `json:"questionsAnswered" db:"questions_answered"`
	Symptoms          []Symptom       `json:"symptoms" db:"symptoms"`
	RiskFactors       []string        `json:"riskFactors,omitempty" db:"risk_factors"`
	AverageConfidence float64         `json:"averageConfidence" db:"average_confidence"`
	EmergencyDetected bool            `json:"emergencyDetected" db:"emergency_detected"`
	AssessmentID      string          `json:"assessmentId,omitempty" db:"assessment_id"`
	Patient           *PatientContext `json:"patient,omitempty" db:"patient"`
	StartedAt         time.Time       `json:"startedAt" db:"started_at"`
	EndedAt           time.Time       `json:"endedAt" db:"ended_at"`
}

// Duration returns the wall time between session start and end.
func (s *SessionSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}
