package contextanalysis

// Factor categories.
const (
	CategoryDiet     = "diet"
	CategoryExertion = "exertion"
	CategoryWeather  = "weather"
	CategoryEmotion  = "emotion"
	CategorySleep    = "sleep"
	CategoryPosture  = "posture"
	CategoryRest     = "rest"
	CategoryTherapy  = "therapy"
	CategoryTiming   = "timing"
	CategoryOther    = "other"
)

type Input struct {
	Text          string `json:"text"`
	MentionStart  int    `json:"mentionStart"`
	MentionLength int    `json:"mentionLength"`
	// Symptom is the canonical name of the mention; it is never reported as
	// its own accompanying symptom.
	Symptom string `json:"symptom,omitempty"`
}

type Output struct {
	Triggers           []Factor       `json:"triggers"`
	ReliefFactors      []Factor       `json:"reliefFactors"`
	AggravatingFactors []Factor       `json:"aggravatingFactors"`
	Accompanying       []Accompanying `json:"accompanying"`
	Timing             []string       `json:"timing,omitempty"`
	Quality            []Quality      `json:"quality,omitempty"`
}

// Empty reports whether nothing was found around the mention.
func (o *Output) Empty() bool {
	return len(o.Triggers) == 0 && len(o.ReliefFactors) == 0 && len(o.AggravatingFactors) == 0 &&
		len(o.Accompanying) == 0 && len(o.Timing) == 0 && len(o.Quality) == 0
}

type Factor struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	SameClause bool    `json:"sameClause"`
}

type Accompanying struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type Quality struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// factorKind selects which output list a factor lands in.
type factorKind int

const (
	kindTrigger factorKind = iota
	kindRelief
	kindAggravation
)
