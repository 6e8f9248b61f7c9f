package flowcontroller

import (
	"fmt"
	"sort"
)

// StageCompletion is what the stage rules decide on.
type StageCompletion struct {
	Adequacy          float64 `json:"adequacy"`
	AnsweredInStage   int     `json:"answeredInStage"`
	MaxQuestions      int     `json:"maxQuestions"`
	AverageConfidence float64 `json:"averageConfidence"`
	// NewSymptoms were first mentioned in the current turn.
	NewSymptoms []string `json:"newSymptoms,omitempty"`
}

func (s StageCompletion) capReached() bool {
	return s.MaxQuestions > 0 && s.AnsweredInStage >= s.MaxQuestions
}

// Rule is one ordered transition rule of a stage. Lower priority values are
// evaluated first and the first rule whose condition holds decides the turn.
type Rule struct {
	Name      string
	Priority  int
	Condition func(ic *InquiryContext, sc StageCompletion) (bool, error)
	Decide    func(ic *InquiryContext, sc StageCompletion) Decision
}

func requiredData(stage Stage) []string {
	switch stage {
	case StageChiefComplaint:
		return []string{DataChiefComplaint}
	case StageSymptomExploration:
		return []string{DataSymptomDuration, DataSymptomSeverity}
	case StageSystemReview:
		return []string{DataAssociatedSymptoms}
	case StageHistoryTaking:
		return []string{DataMedicalHistory}
	case StageRiskAssessment:
		return []string{DataRiskFactors}
	case StageInitialization, StageConclusion, StageEmergency:
		return nil
	default:
		panic(fmt.Sprintf("flowcontroller: unhandled stage %q", string(stage)))
	}
}

// hasData reports whether a data key is known, either answered directly or
// implied by what the extractor already filled into the profile.
func hasData(ic *InquiryContext, key string) bool {
	if ic.Collected[key] != "" {
		return true
	}
	switch key {
	case DataSymptomDuration:
		main, ok := ic.Profile.Main()
		return ok && main.DurationDays > 0
	case DataSymptomSeverity:
		main, ok := ic.Profile.Main()
		return ok && main.HasSeverity()
	case DataRiskFactors:
		return len(ic.RiskFactors) > 0
	}
	return false
}

// adequacy is the fraction of the stage's required data that is present.
func adequacy(ic *InquiryContext) float64 {
	required := requiredData(ic.Stage)
	if len(required) == 0 {
		return 1
	}
	present := 0
	for _, key := range required {
		if hasData(ic, key) {
			present++
		}
	}
	return float64(present) / float64(len(required))
}

func advance(to Stage, rule, reasoning string, confidence float64) func(*InquiryContext, StageCompletion) Decision {
	return func(*InquiryContext, StageCompletion) Decision {
		return Decision{
			Kind:       AdvanceStage,
			NextStage:  to,
			Reasoning:  reasoning,
			Confidence: confidence,
			Metadata:   map[string]string{MetaRule: rule},
		}
	}
}

func conclude(rule, reasoning string, confidence float64) func(*InquiryContext, StageCompletion) Decision {
	return func(*InquiryContext, StageCompletion) Decision {
		return Decision{
			Kind:       ConcludeInquiry,
			NextStage:  StageConclusion,
			Reasoning:  reasoning,
			Confidence: confidence,
			Metadata:   map[string]string{MetaRule: rule},
		}
	}
}

func branch(rule, reasoning string, focus func(*InquiryContext, StageCompletion) string) func(*InquiryContext, StageCompletion) Decision {
	return func(ic *InquiryContext, sc StageCompletion) Decision {
		return Decision{
			Kind:       BranchExploration,
			NextStage:  ic.Stage,
			Reasoning:  reasoning,
			Confidence: 0.7,
			Metadata:   map[string]string{MetaRule: rule, MetaBranchFocus: focus(ic, sc)},
		}
	}
}

// branchCandidate picks the first symptom still lacking duration or severity,
// preferring anything other than the main symptom.
func branchCandidate(ic *InquiryContext) string {
	var fallback string
	for i, s := range ic.Profile.List() {
		if s.Characterized() {
			continue
		}
		if i > 0 {
			return s.Name
		}
		fallback = s.Name
	}
	return fallback
}

func uncharacterized(ic *InquiryContext) int {
	n := 0
	for _, s := range ic.Profile.List() {
		if !s.Characterized() {
			n++
		}
	}
	return n
}

// DefaultRules returns the transition rules of every stage.
func DefaultRules(config *Config) map[Stage][]Rule {
	adequate := func(ic *InquiryContext, sc StageCompletion) (bool, error) {
		return sc.Adequacy >= config.AdequacyThreshold, nil
	}
	capReached := func(_ *InquiryContext, sc StageCompletion) (bool, error) {
		return sc.capReached(), nil
	}

	return map[Stage][]Rule{
		StageInitialization: {
			{
				Name:      "session_started",
				Priority:  1,
				Condition: func(*InquiryContext, StageCompletion) (bool, error) { return true, nil },
				Decide:    advance(StageChiefComplaint, "session_started", "开始收集主诉信息", 1.0),
			},
		},
		StageChiefComplaint: {
			{
				Name:     "chief_complaint_clear",
				Priority: 1,
				Condition: func(ic *InquiryContext, sc StageCompletion) (bool, error) {
					return sc.Adequacy >= config.AdequacyThreshold && ic.Profile.Len() > 0, nil
				},
				Decide: advance(StageSymptomExploration, "chief_complaint_clear", "主诉明确，开始详细症状探索", 0.9),
			},
			{
				Name:      "max_questions_reached",
				Priority:  2,
				Condition: capReached,
				Decide:    advance(StageSymptomExploration, "max_questions_reached", "主诉阶段问题已达上限，进入症状探索", 0.6),
			},
		},
		StageSymptomExploration: {
			{
				Name:      "symptoms_well_characterized",
				Priority:  1,
				Condition: adequate,
				Decide:    advance(StageSystemReview, "symptoms_well_characterized", "主要症状已充分描述，进入系统回顾", 0.85),
			},
			{
				Name:      "max_questions_reached",
				Priority:  2,
				Condition: capReached,
				Decide:    advance(StageSystemReview, "max_questions_reached", "症状探索问题已达上限，进入系统回顾", 0.6),
			},
			{
				Name:     "complex_symptom_pattern",
				Priority: 3,
				Condition: func(ic *InquiryContext, _ StageCompletion) (bool, error) {
					return uncharacterized(ic) >= config.BranchMinUncharacterized, nil
				},
				Decide: branch("complex_symptom_pattern", "存在多个未明确的症状，进行分支探索",
					func(ic *InquiryContext, _ StageCompletion) string { return branchCandidate(ic) }),
			},
		},
		StageSystemReview: {
			{
				Name:      "max_questions_reached",
				Priority:  1,
				Condition: capReached,
				Decide:    advance(StageHistoryTaking, "max_questions_reached", "系统回顾问题已达上限，进入病史采集", 0.6),
			},
			{
				Name:     "significant_findings",
				Priority: 2,
				Condition: func(_ *InquiryContext, sc StageCompletion) (bool, error) {
					return len(sc.NewSymptoms) > 0, nil
				},
				Decide: branch("significant_findings", "系统回顾发现新症状，进行分支探索",
					func(_ *InquiryContext, sc StageCompletion) string { return sc.NewSymptoms[0] }),
			},
			{
				Name:      "comprehensive_review_complete",
				Priority:  3,
				Condition: adequate,
				Decide:    advance(StageHistoryTaking, "comprehensive_review_complete", "系统回顾完成，进入病史采集", 0.8),
			},
		},
		StageHistoryTaking: {
			{
				Name:      "relevant_history_collected",
				Priority:  1,
				Condition: adequate,
				Decide:    advance(StageRiskAssessment, "relevant_history_collected", "病史信息已收集，进入风险评估", 0.8),
			},
			{
				Name:      "max_questions_reached",
				Priority:  2,
				Condition: capReached,
				Decide:    advance(StageRiskAssessment, "max_questions_reached", "病史采集问题已达上限，进入风险评估", 0.6),
			},
		},
		StageRiskAssessment: {
			{
				Name:      "risk_assessment_complete",
				Priority:  1,
				Condition: adequate,
				Decide:    conclude("risk_assessment_complete", "问诊信息收集完成，准备生成结论", 0.8),
			},
			{
				Name:      "max_questions_reached",
				Priority:  2,
				Condition: capReached,
				Decide:    conclude("max_questions_reached", "风险评估问题已达上限，结束问诊", 0.6),
			},
		},
		StageConclusion: {
			{
				Name:      "inquiry_concluded",
				Priority:  1,
				Condition: func(*InquiryContext, StageCompletion) (bool, error) { return true, nil },
				Decide:    conclude("inquiry_concluded", "问诊已结束", 1.0),
			},
		},
	}
}

func sortedRules(rules []Rule) []Rule {
	out := append([]Rule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func continueCurrent(ic *InquiryContext, reasoning string) Decision {
	return Decision{
		Kind:       ContinueCurrent,
		NextStage:  ic.Stage,
		Reasoning:  reasoning,
		Confidence: 0.5,
	}
}
