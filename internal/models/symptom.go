package models

// Severity levels produced by the severity analyzer.
const (
	SeverityUnknown  = "unknown"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

const (
	OnsetSudden  = "sudden"
	OnsetGradual = "gradual"

	PeriodicityContinuous   = "continuous"
	PeriodicityIntermittent = "intermittent"
)

// Symptom is one canonical symptom observed in the conversation.
type Symptom struct {
	Name               string   `json:"name"`
	Severity           float64  `json:"severity"` // 0-10, 0 = unknown
	SeverityLevel      string   `json:"severityLevel"`
	DurationDays       float64  `json:"durationDays"` // 0 = unknown
	Onset              string   `json:"onset,omitempty"`
	Periodicity        string   `json:"periodicity,omitempty"`
	BodyLocation       string   `json:"bodyLocation,omitempty"`
	Triggers           []string `json:"triggers,omitempty"`
	ReliefFactors      []string `json:"reliefFactors,omitempty"`
	AggravatingFactors []string `json:"aggravatingFactors,omitempty"`
	Accompanying       []string `json:"accompanying,omitempty"`
	Context            string   `json:"context,omitempty"`
	Confidence         float64  `json:"confidence"`
}

// Characterized reports whether both duration and severity are known.
func (s Symptom) Characterized() bool {
	return s.DurationDays > 0 && s.HasSeverity()
}

func (s Symptom) HasSeverity() bool {
	return s.Severity > 0 || (s.SeverityLevel != "" && s.SeverityLevel != SeverityUnknown)
}

// Merge folds a later mention of the same symptom into s. Known values of the
// later mention win; factor lists are unioned in first-seen order.
func (s Symptom) Merge(later Symptom) Symptom {
	out := s
	if later.Severity > 0 {
		out.Severity = later.Severity
	}
	if later.SeverityLevel != "" && later.SeverityLevel != SeverityUnknown {
		out.SeverityLevel = later.SeverityLevel
	}
	if out.SeverityLevel == "" {
		out.SeverityLevel = SeverityUnknown
	}
	if later.DurationDays > 0 {
		out.DurationDays = later.DurationDays
	}
	if later.Onset != "" {
		out.Onset = later.Onset
	}
	if later.Periodicity != "" {
		out.Periodicity = later.Periodicity
	}
	if later.BodyLocation != "" {
		out.BodyLocation = later.BodyLocation
	}
	if later.Context != "" {
		out.Context = later.Context
	}
	if later.Confidence > out.Confidence {
		out.Confidence = later.Confidence
	}
	out.Triggers = UnionStrings(s.Triggers, later.Triggers)
	out.ReliefFactors = UnionStrings(s.ReliefFactors, later.ReliefFactors)
	out.AggravatingFactors = UnionStrings(s.AggravatingFactors, later.AggravatingFactors)
	out.Accompanying = UnionStrings(s.Accompanying, later.Accompanying)
	return out
}

type BodyLocation struct {
	Name     string   `json:"name"`
	Side     string   `json:"side,omitempty"` // left | right | bilateral | central
	Symptoms []string `json:"symptoms,omitempty"`
}

type TemporalFactor struct {
	Type        string   `json:"type"` // diurnal | seasonal | durational | frequency | trigger
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms,omitempty"`
}

// SymptomProfile is the per-session symptom map keyed by canonical name.
// Order keeps first-mention order so the main symptom stays stable.
type SymptomProfile struct {
	Order []string           `json:"order"`
	Items map[string]Symptom `json:"items"`
}

func NewSymptomProfile() *SymptomProfile {
	return &SymptomProfile{Items: make(map[string]Symptom)}
}

// Upsert inserts the symptom or merges it into the existing entry.
// It returns true when the symptom was not yet present.
func (p *SymptomProfile) Upsert(s Symptom) bool {
	if p.Items == nil {
		p.Items = make(map[string]Symptom)
	}
	if existing, ok := p.Items[s.Name]; ok {
		p.Items[s.Name] = existing.Merge(s)
		return false
	}
	if s.SeverityLevel == "" {
		s.SeverityLevel = SeverityUnknown
	}
	p.Items[s.Name] = s
	p.Order = append(p.Order, s.Name)
	return true
}

func (p *SymptomProfile) Get(name string) (Symptom, bool) {
	if p == nil || p.Items == nil {
		return Symptom{}, false
	}
	s, ok := p.Items[name]
	return s, ok
}

func (p *SymptomProfile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Order)
}

// Main returns the first symptom the patient mentioned.
func (p *SymptomProfile) Main() (Symptom, bool) {
	if p.Len() == 0 {
		return Symptom{}, false
	}
	return p.Get(p.Order[0])
}

// List returns symptoms in first-mention order.
func (p *SymptomProfile) List() []Symptom {
	if p == nil {
		return nil
	}
	out := make([]Symptom, 0, len(p.Order))
	for _, name := range p.Order {
		out = append(out, p.Items[name])
	}
	return out
}

// Snapshot returns a copy that shares no maps or slices with p.
func (p *SymptomProfile) Snapshot() map[string]Symptom {
	out := make(map[string]Symptom, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.Items {
		out[k] = v
	}
	return out
}

// Clone returns an independent profile with the same entries and order.
func (p *SymptomProfile) Clone() *SymptomProfile {
	out := NewSymptomProfile()
	if p == nil {
		return out
	}
	out.Order = append([]string{}, p.Order...)
	for k, v := range p.Items {
		out.Items[k] = v
	}
	return out
}

// UnionStrings appends the members of b missing from a, keeping order.
func UnionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
