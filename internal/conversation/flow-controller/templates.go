package flowcontroller

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Answer types understood by the symptom extractor.
const (
	AnswerText     = "text"
	AnswerScale    = "scale"
	AnswerDuration = "duration"
	AnswerChoice   = "choice"
	AnswerYesNo    = "yes_no"
)

type templateFile struct {
	Version   string             `yaml:"version"`
	Questions []QuestionTemplate `yaml:"questions"`
}

// DefaultTemplates is the built-in question set used when no template file is
// configured.
func DefaultTemplates() []QuestionTemplate {
	return []QuestionTemplate{
		{
			ID:         "chief_complaint_main",
			Text:       "请详细描述您最主要的不适症状？",
			Stage:      StageChiefComplaint,
			Priority:   PriorityCritical,
			AnswerType: AnswerText,
			Validation: []string{"required"},
			Collects:   DataChiefComplaint,
		},
		{
			ID:         "chief_complaint_onset",
			Text:       "{main_symptom}是什么时候开始的？是突然出现还是逐渐加重？",
			Stage:      StageChiefComplaint,
			Priority:   PriorityHigh,
			Conditions: []string{CondMainSymptom},
			AnswerType: AnswerText,
		},
		{
			ID:         "symptom_duration",
			Text:       "您的{main_symptom}持续多长时间了？",
			Stage:      StageSymptomExploration,
			Priority:   PriorityHigh,
			Conditions: []string{CondHasSymptom},
			AnswerType: AnswerDuration,
			Collects:   DataSymptomDuration,
		},
		{
			ID:         "symptom_severity",
			Text:       "请用1-10分评价{main_symptom}的严重程度（1分最轻，10分最重）？",
			Stage:      StageSymptomExploration,
			Priority:   PriorityHigh,
			Conditions: []string{CondHasSymptom},
			AnswerType: AnswerScale,
			Validation: []string{"range:1-10"},
			Collects:   DataSymptomSeverity,
		},
		{
			ID:         "symptom_modifiers",
			Text:       "{main_symptom}在什么情况下会加重或减轻？",
			Stage:      StageSymptomExploration,
			Priority:   PriorityMedium,
			Conditions: []string{CondHasSymptom},
			AnswerType: AnswerText,
		},
		{
			ID:         "branch_symptom_detail",
			Text:       "请再具体说说{branch_symptom}：持续多久了，有多严重？",
			Stage:      StageSymptomExploration,
			Priority:   PriorityHigh,
			Conditions: []string{CondBranchActive},
			AnswerType: AnswerText,
			Tags:       []string{"branch"},
		},
		{
			ID:         "associated_symptoms",
			Text:       "除了{main_symptom}，您还有其他不适吗？",
			Stage:      StageSystemReview,
			Priority:   PriorityMedium,
			Conditions: []string{CondMainSymptom},
			AnswerType: AnswerText,
			Collects:   DataAssociatedSymptoms,
		},
		{
			ID:         "review_branch_detail",
			Text:       "您提到了{branch_symptom}，能具体描述一下吗？",
			Stage:      StageSystemReview,
			Priority:   PriorityHigh,
			Conditions: []string{CondBranchActive},
			AnswerType: AnswerText,
			Tags:       []string{"branch"},
		},
		{
			ID:         "general_review",
			Text:       "最近的睡眠、食欲和大小便情况怎么样？",
			Stage:      StageSystemReview,
			Priority:   PriorityLow,
			AnswerType: AnswerText,
			Collects:   DataAssociatedSymptoms,
		},
		{
			ID:         "past_medical_history",
			Text:       "您之前有过类似的症状或相关疾病吗？",
			Stage:      StageHistoryTaking,
			Priority:   PriorityMedium,
			AnswerType: AnswerText,
			Collects:   DataMedicalHistory,
		},
		{
			ID:         "medication_history",
			Text:       "您目前在服用什么药物吗？有药物过敏吗？",
			Stage:      StageHistoryTaking,
			Priority:   PriorityLow,
			AnswerType: AnswerText,
			Tags:       []string{"elderly"},
		},
		{
			ID:         "pregnancy_status",
			Text:       "您目前是否怀孕或有怀孕的可能？",
			Stage:      StageHistoryTaking,
			Priority:   PriorityHigh,
			Conditions: []string{CondPregnancyAge},
			AnswerType: AnswerYesNo,
			Tags:       []string{"reproductive"},
		},
		{
			ID:         "fall_history",
			Text:       "最近半年内有没有跌倒过？",
			Stage:      StageHistoryTaking,
			Priority:   PriorityLow,
			Conditions: []string{CondElderly},
			AnswerType: AnswerYesNo,
			Tags:       []string{"elderly"},
		},
		{
			ID:         "family_history",
			Text:       "您的家族中有相关疾病史吗？",
			Stage:      StageRiskAssessment,
			Priority:   PriorityLow,
			AnswerType: AnswerText,
			Collects:   DataRiskFactors,
		},
		{
			ID:         "lifestyle",
			Text:       "您是否吸烟、饮酒？平时的运动和饮食习惯如何？",
			Stage:      StageRiskAssessment,
			Priority:   PriorityMedium,
			AnswerType: AnswerText,
			Collects:   DataRiskFactors,
		},
	}
}

// LoadTemplates reads a question template file. An empty path returns the
// built-in set.
func LoadTemplates(path string) ([]QuestionTemplate, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question templates: %w", err)
	}
	return ParseTemplates(data)
}

func ParseTemplates(data []byte) ([]QuestionTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question templates: %w", err)
	}
	if err := ValidateTemplates(file.Questions); err != nil {
		return nil, err
	}
	return file.Questions, nil
}

var (
	knownConditions = map[string]bool{
		CondHasSymptom: true, CondMainSymptom: true, CondBranchActive: true,
		CondFemale: true, CondPregnancyAge: true, CondElderly: true,
	}
	knownAnswerTypes = map[string]bool{
		AnswerText: true, AnswerScale: true, AnswerDuration: true, AnswerChoice: true, AnswerYesNo: true,
	}
)

// ValidateTemplates checks ids, stages, priorities, conditions and validation
// rules. Every problem found is reported.
func ValidateTemplates(templates []QuestionTemplate) error {
	if len(templates) == 0 {
		return fmt.Errorf("question templates: no questions defined")
	}
	var problems []string
	seen := make(map[string]bool, len(templates))
	for i, t := range templates {
		label := fmt.Sprintf("questions[%d]", i)
		if t.ID == "" {
			problems = append(problems, label+": id is required")
		} else {
			label = t.ID
			if seen[t.ID] {
				problems = append(problems, label+": duplicate id")
			}
			seen[t.ID] = true
		}
		if strings.TrimSpace(t.Text) == "" {
			problems = append(problems, label+": text is required")
		}
		if _, err := ParseStage(string(t.Stage)); err != nil || !t.Stage.Questioning() {
			problems = append(problems, fmt.Sprintf("%s: stage %q does not ask questions", label, t.Stage))
		}
		if _, ok := t.Priority.baseScore(); !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown priority %q", label, t.Priority))
		}
		if !knownAnswerTypes[t.AnswerType] {
			problems = append(problems, fmt.Sprintf("%s: unknown answer type %q", label, t.AnswerType))
		}
		for _, c := range t.Conditions {
			if !knownConditions[c] {
				problems = append(problems, fmt.Sprintf("%s: unknown condition %q", label, c))
			}
		}
		for _, rule := range t.Validation {
			if _, err := parseValidationRule(rule); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", label, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid question templates: %s", strings.Join(problems, "; "))
	}
	return nil
}
