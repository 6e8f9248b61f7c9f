// pkg/kbase/schema.go
package kbase

// Entity types.
const (
	TypeSymptom      = "Symptom"
	TypeSyndrome     = "Syndrome"
	TypeFormula      = "Formula"
	TypeHerb         = "Herb"
	TypeMeridian     = "Meridian"
	TypeOrgan        = "Organ"
	TypeConstitution = "Constitution"
)

// Relation kinds.
const (
	KindSymptomIndicates  = "SymptomIndicates"
	KindSyndromeTreats    = "SyndromeTreats"
	KindFormulaContains   = "FormulaContains"
	KindHerbAffects       = "HerbAffects"
	KindMeridianConnects  = "MeridianConnects"
	KindConstitutionProne = "ConstitutionProne"
	KindContraindication  = "Contraindication"
)

// Pregnancy cautions.
const (
	PregnancyForbidden = "forbidden"
	PregnancyCaution   = "caution"
)

// Disease context rule kinds.
const (
	RuleAgeOver  = "age_over"
	RuleAgeUnder = "age_under"
	RuleGender   = "gender"
)

var EntityTypes = []string{
	TypeSymptom, TypeSyndrome, TypeFormula, TypeHerb, TypeMeridian, TypeOrgan, TypeConstitution,
}

var RelationKinds = []string{
	KindSymptomIndicates, KindSyndromeTreats, KindFormulaContains, KindHerbAffects,
	KindMeridianConnects, KindConstitutionProne, KindContraindication,
}

// Document is a complete knowledge base as stored on disk or served remotely.
type Document struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Entities    []Entity   `json:"entities"`
	Relations   []Relation `json:"relations"`
	Diseases    []Disease  `json:"diseases,omitempty"`
}

type Entity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Aliases    []string   `json:"aliases,omitempty"`
	Properties Properties `json:"properties,omitempty"`
}

// Properties holds the typed entity attributes. Anything without a field
// lands in Extra.
type Properties struct {
	Category           string                 `json:"category,omitempty"`
	Nature             string                 `json:"nature,omitempty"`
	Organ              string                 `json:"organ,omitempty"`
	Location           string                 `json:"location,omitempty"`
	System             string                 `json:"system,omitempty"`
	TreatmentPrinciple string                 `json:"treatmentPrinciple,omitempty"`
	SeverityScore      float64                `json:"severityScore,omitempty"`
	Functions          []string               `json:"functions,omitempty"`
	PregnancyCaution   string                 `json:"pregnancyCaution,omitempty"`
	MinAge             int                    `json:"minAge,omitempty"`
	Meridians          []string               `json:"meridians,omitempty"`
	Indicators         []string               `json:"indicators,omitempty"`
	Extra              map[string]interface{} `json:"extra,omitempty"`
}

type Relation struct {
	ID     string                 `json:"id,omitempty"`
	Source string                 `json:"source"`
	Target string                 `json:"target"`
	Kind   string                 `json:"kind"`
	Weight float64                `json:"weight"`
	Reason string                 `json:"reason,omitempty"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Disease is one candidate of the differential diagnosis reference set.
type Disease struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	ICDCode           string           `json:"icdCode,omitempty"`
	Category          string           `json:"category,omitempty"`
	TypicalSymptoms   []TypicalSymptom `json:"typicalSymptoms"`
	RequiredSymptoms  []string         `json:"requiredSymptoms,omitempty"`
	ExclusionSymptoms []string         `json:"exclusionSymptoms,omitempty"`
	RiskFactors       []string         `json:"riskFactors,omitempty"`
	Prevalence        float64          `json:"prevalence"`
	SeverityScore     float64          `json:"severityScore"`
	ContextRules      []ContextRule    `json:"contextRules,omitempty"`
	Advice            []Advice         `json:"advice,omitempty"`
}

// TypicalSymptom is a symptom of a disease with its membership probability.
// Zero membership means the engine default.
type TypicalSymptom struct {
	Name       string  `json:"name"`
	Membership float64 `json:"membership,omitempty"`
}

type ContextRule struct {
	Kind   string  `json:"kind"`
	Age    int     `json:"age,omitempty"`
	Gender string  `json:"gender,omitempty"`
	Factor float64 `json:"factor"`
}

// Advice is condition-specific guidance attached to a disease.
type Advice struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	Rationale string   `json:"rationale,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Urgency   int      `json:"urgency"`
}

// Stats summarises a document for tooling.
type Stats struct {
	Entities        int            `json:"entities"`
	Relations       int            `json:"relations"`
	Diseases        int            `json:"diseases"`
	EntitiesByType  map[string]int `json:"entitiesByType"`
	RelationsByKind map[string]int `json:"relationsByKind"`
}

func (d *Document) Stats() Stats {
	s := Stats{
		Entities:        len(d.Entities),
		Relations:       len(d.Relations),
		Diseases:        len(d.Diseases),
		EntitiesByType:  make(map[string]int),
		RelationsByKind: make(map[string]int),
	}
	for _, e := range d.Entities {
		s.EntitiesByType[e.Type]++
	}
	for _, r := range d.Relations {
		s.RelationsByKind[r.Kind]++
	}
	return s
}
