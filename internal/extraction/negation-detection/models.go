package negationdetection

// Cue families.
const (
	CueDirect     = "direct"
	CueAbsolute   = "absolute"
	CuePartial    = "partial"
	CueRhetorical = "rhetorical"
)

type Input struct {
	Text string `json:"text"`
	// MentionStart and MentionLength are rune offsets into Text.
	MentionStart  int `json:"mentionStart"`
	MentionLength int `json:"mentionLength"`
}

type Output struct {
	Negated    bool    `json:"negated"`
	Confidence float64 `json:"confidence"`
	Cue        string  `json:"cue,omitempty"`
	CueType    string  `json:"cueType,omitempty"`
	Distance   int     `json:"distance"`
	Contrast   bool    `json:"contrast"`
}

type cue struct {
	family   string
	strength float64
}
