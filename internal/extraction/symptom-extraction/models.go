package symptomextraction

import "inquiry-core/internal/models"

// Answer types tell the extractor how a bare answer should be read.
const (
	AnswerTypeText     = "text"
	AnswerTypeScale    = "scale"
	AnswerTypeDuration = "duration"
	AnswerTypeChoice   = "choice"
	AnswerTypeYesNo    = "yes_no"
)

type Input struct {
	Text string `json:"text"`
	// Profile is the session's current symptom profile; it is read, never written.
	Profile *models.SymptomProfile `json:"-"`
	// FocusSymptom receives severity and duration from answers that name no
	// symptom. Empty falls back to the profile's main symptom.
	FocusSymptom string `json:"focusSymptom,omitempty"`
	AnswerType   string `json:"answerType,omitempty"`
}

type Output struct {
	Symptoms        []models.Symptom        `json:"symptoms"`
	ProfileUpdates  []models.Symptom        `json:"profileUpdates,omitempty"`
	NegatedSymptoms []string                `json:"negatedSymptoms,omitempty"`
	BodyLocations   []models.BodyLocation   `json:"bodyLocations"`
	TemporalFactors []models.TemporalFactor `json:"temporalFactors"`
	Confidence      float64                 `json:"confidence"`
	// Degraded lists analyzers that failed and fell back to their defaults.
	Degraded []string `json:"degraded,omitempty"`
}

// Empty reports whether the utterance produced no usable observation.
func (o *Output) Empty() bool {
	return len(o.Symptoms) == 0 && len(o.ProfileUpdates) == 0
}

// TCMClassification places a symptom within traditional Chinese medicine theory.
type TCMClassification struct {
	PatternAssociations []string `json:"patternAssociations"`
	OrganSystems        []string `json:"organSystems"`
	PathogenicFactors   []string `json:"pathogenicFactors"`
	Nature              string   `json:"nature"`
}
