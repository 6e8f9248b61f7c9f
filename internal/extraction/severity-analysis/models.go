package severityanalysis

type Input struct {
	Text string `json:"text"`
	// MentionStart and MentionLength are rune offsets. A zero length analyzes
	// the whole text, which is how answers to a rating question are read.
	MentionStart  int `json:"mentionStart"`
	MentionLength int `json:"mentionLength"`
}

type Output struct {
	Level            string             `json:"level"`
	Score            float64            `json:"score"` // 0-10, 0 when unknown
	Confidence       float64            `json:"confidence"`
	Explicit         bool               `json:"explicit"`
	FunctionalImpact bool               `json:"functionalImpact"`
	Matched          []string           `json:"matched,omitempty"`
	TierScores       map[string]float64 `json:"tierScores,omitempty"`
}

// effect is what a matched term adds to each tier.
type effect struct {
	mild       float64
	moderate   float64
	severe     float64
	functional bool
}

type band struct {
	lo float64
	hi float64
}
