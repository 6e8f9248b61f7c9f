package flowcontroller

import (
	"time"

	"inquiry-core/internal/models"
)

// Conditions a question template may require before it is offered.
const (
	CondHasSymptom   = "has_symptom"
	CondMainSymptom  = "main_symptom_identified"
	CondBranchActive = "branch_active"
	CondFemale       = "female"
	CondPregnancyAge = "pregnancy_age"
	CondElderly      = "elderly"
)

// Keys of InquiryContext.Collected that stage adequacy is computed from.
const (
	DataChiefComplaint     = "chief_complaint"
	DataSymptomDuration    = "symptom_duration"
	DataSymptomSeverity    = "symptom_severity"
	DataAssociatedSymptoms = "associated_symptoms"
	DataMedicalHistory     = "medical_history"
	DataRiskFactors        = "risk_factors"
)

// Metadata keys set on decisions.
const (
	MetaBranchFocus     = "branchFocus"
	MetaEmergencySource = "emergencySource"
	MetaEmergencyMatch  = "emergencyTrigger"
	MetaRule            = "rule"
	MetaError           = "error"
	MetaSkippedStages   = "skippedStages"
)

type QuestionTemplate struct {
	ID         string            `json:"id" yaml:"id"`
	Text       string            `json:"text" yaml:"text"`
	Stage      Stage             `json:"stage" yaml:"stage"`
	Priority   Priority          `json:"priority" yaml:"priority"`
	Conditions []string          `json:"conditions,omitempty" yaml:"conditions"`
	AnswerType string            `json:"answerType" yaml:"answer_type"`
	Validation []string          `json:"validation,omitempty" yaml:"validation"`
	Collects   string            `json:"collects,omitempty" yaml:"collects"`
	Tags       []string          `json:"tags,omitempty" yaml:"tags"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata"`
}

func (t QuestionTemplate) hasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// Question is a template rendered for one session.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Stage      Stage    `json:"stage"`
	Priority   Priority `json:"priority"`
	AnswerType string   `json:"answerType"`
	Validation []string `json:"validation,omitempty"`
	Hint       string   `json:"hint,omitempty"`
	Score      float64  `json:"score"`
}

type Decision struct {
	Kind          DecisionKind      `json:"kind"`
	NextStage     Stage             `json:"nextStage"`
	NextQuestions []string          `json:"nextQuestions"`
	Reasoning     string            `json:"reasoning"`
	Confidence    float64           `json:"confidence"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type StageEntry struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"enteredAt"`
}

type AnswerRecord struct {
	QuestionID string    `json:"questionId"`
	Stage      Stage     `json:"stage"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// InquiryContext is the whole per-session conversation state. It is owned by
// a single writer at a time and serialises to JSON for the session store.
type InquiryContext struct {
	SessionID string                 `json:"sessionId"`
	PatientID string                 `json:"patientId"`
	Stage     Stage                  `json:"stage"`
	Patient   *models.PatientContext `json:"patient,omitempty"`

	Collected map[string]string      `json:"collected"`
	Profile   *models.SymptomProfile `json:"profile"`

	RiskFactors []string       `json:"riskFactors"`
	Answers     []AnswerRecord `json:"answers"`

	// StageHistory is append-only.
	StageHistory []StageEntry `json:"stageHistory"`

	// StageAnswers counts answers given since the current stage was entered.
	StageAnswers int    `json:"stageAnswers"`
	BranchFocus  string `json:"branchFocus,omitempty"`

	EmergencyDetected bool      `json:"emergencyDetected"`
	Concluded         bool      `json:"concluded"`
	LastDecision      *Decision `json:"lastDecision,omitempty"`
	StartedAt         time.Time `json:"startedAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Answered reports whether the question was answered at least once.
func (c *InquiryContext) Answered(questionID string) bool {
	for _, a := range c.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// AnsweredCount is the number of distinct questions answered.
func (c *InquiryContext) AnsweredCount() int {
	seen := make(map[string]struct{}, len(c.Answers))
	for _, a := range c.Answers {
		seen[a.QuestionID] = struct{}{}
	}
	return len(seen)
}

// AverageConfidence is the mean confidence of the latest answer to each question.
func (c *InquiryContext) AverageConfidence() float64 {
	latest := make(map[string]float64, len(c.Answers))
	for _, a := range c.Answers {
		latest[a.QuestionID] = a.Confidence
	}
	if len(latest) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range latest {
		sum += v
	}
	return sum / float64(len(latest))
}

func (c *InquiryContext) enter(stage Stage, at time.Time) {
	c.Stage = stage
	c.StageHistory = append(c.StageHistory, StageEntry{Stage: stage, EnteredAt: at})
	c.StageAnswers = 0
	c.BranchFocus = ""
}

// Summary is the closing report of a conversation.
type Summary struct {
	SessionID         string           `json:"sessionId"`
	PatientID         string           `json:"patientId"`
	Stage             Stage            `json:"stage"`
	AnsweredQuestions int              `json:"answeredQuestions"`
	CollectedKeys     []string         `json:"collectedKeys"`
	SymptomCount      int              `json:"symptomCount"`
	Symptoms          []models.Symptom `json:"symptoms"`
	RiskFactors       []string         `json:"riskFactors"`
	StageHistory      []StageEntry     `json:"stageHistory"`
	AverageConfidence float64          `json:"averageConfidence"`
	EmergencyDetected bool             `json:"emergencyDetected"`
}

// Turn is one answer submitted to ProcessAnswer. Extraction is the result of
// the symptom extractor for Answer; nil means extraction was unavailable.
type Turn struct {
	QuestionID string
	Answer     string
	Confidence float64
	Extraction *Extraction
}

// Extraction is the part of the symptom extractor's output the flow consumes.
type Extraction struct {
	Symptoms        []models.Symptom
	ProfileUpdates  []models.Symptom
	NegatedSymptoms []string
}
