package flowcontroller

import "fmt"

type Stage string

const (
	StageInitialization     Stage = "initialization"
	StageChiefComplaint     Stage = "chief_complaint"
	StageSymptomExploration Stage = "symptom_exploration"
	StageSystemReview       Stage = "system_review"
	StageHistoryTaking      Stage = "history_taking"
	StageRiskAssessment     Stage = "risk_assessment"
	StageConclusion         Stage = "conclusion"
	StageEmergency          Stage = "emergency"
)

// Stages lists every stage in conversation order, Emergency last.
var Stages = []Stage{
	StageInitialization,
	StageChiefComplaint,
	StageSymptomExploration,
	StageSystemReview,
	StageHistoryTaking,
	StageRiskAssessment,
	StageConclusion,
	StageEmergency,
}

func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Next returns the stage that follows s in the scripted order. Conclusion and
// Emergency have no successor.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageInitialization:
		return StageChiefComplaint, true
	case StageChiefComplaint:
		return StageSymptomExploration, true
	case StageSymptomExploration:
		return StageSystemReview, true
	case StageSystemReview:
		return StageHistoryTaking, true
	case StageHistoryTaking:
		return StageRiskAssessment, true
	case StageRiskAssessment:
		return StageConclusion, true
	case StageConclusion, StageEmergency:
		return "", false
	default:
		panic(fmt.Sprintf("flowcontroller: unhandled stage %q", string(s)))
	}
}

// Absorbing reports whether no transition can leave s.
func (s Stage) Absorbing() bool {
	return s == StageEmergency
}

// Questioning reports whether the stage asks template questions.
func (s Stage) Questioning() bool {
	switch s {
	case StageChiefComplaint, StageSymptomExploration, StageSystemReview, StageHistoryTaking, StageRiskAssessment:
		return true
	case StageInitialization, StageConclusion, StageEmergency:
		return false
	default:
		panic(fmt.Sprintf("flowcontroller: unhandled stage %q", string(s)))
	}
}

type DecisionKind string

const (
	ContinueCurrent   DecisionKind = "ContinueCurrent"
	AdvanceStage      DecisionKind = "AdvanceStage"
	BranchExploration DecisionKind = "BranchExploration"
	EmergencyProtocol DecisionKind = "EmergencyProtocol"
	ConcludeInquiry   DecisionKind = "ConcludeInquiry"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityOptional Priority = "optional"
)

// baseScore is the ranking base of a question priority; ok is false for an
// unknown priority.
func (p Priority) baseScore() (score float64, ok bool) {
	switch p {
	case PriorityCritical:
		return 100, true
	case PriorityHigh:
		return 80, true
	case PriorityMedium:
		return 60, true
	case PriorityLow:
		return 40, true
	case PriorityOptional:
		return 20, true
	}
	return 0, false
}
