package durationextraction

// Expression kinds, in matching priority order.
const (
	KindRange   = "range"
	KindNumeric = "numeric"
	KindNumeral = "numeral"
	KindFuzzy   = "fuzzy"
)

type Input struct {
	Text string `json:"text"`
	// A zero MentionLength reads the whole text; otherwise only the mention's sentence.
	MentionStart  int `json:"mentionStart"`
	MentionLength int `json:"mentionLength"`
}

type Output struct {
	Days        float64      `json:"days"` // 0 when no plausible duration was found
	Kind        string       `json:"kind,omitempty"`
	Onset       string       `json:"onset,omitempty"`
	Periodicity string       `json:"periodicity,omitempty"`
	Confidence  float64      `json:"confidence"`
	Expressions []Expression `json:"expressions,omitempty"`
}

// Expression is one time expression found in the text. Future references carry
// negative days and are never selected as the duration.
type Expression struct {
	Text   string  `json:"text"`
	Days   float64 `json:"days"`
	Kind   string  `json:"kind"`
	Future bool    `json:"future"`
}
