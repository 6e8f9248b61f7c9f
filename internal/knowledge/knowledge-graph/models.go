package knowledgegraph

import (
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

type (
	Entity     = kbase.Entity
	Relation   = kbase.Relation
	Properties = kbase.Properties
)

// Resolution methods.
const (
	MatchExact  = "exact"
	MatchFuzzy  = "fuzzy"
	MatchSearch = "search"
)

type Resolution struct {
	Entity     Entity  `json:"entity"`
	Method     string  `json:"method"`
	Similarity float64 `json:"similarity"`
}

// Candidate is a syndrome reached from the observed symptoms.
type Candidate struct {
	SyndromeID         string   `json:"syndromeId"`
	Name               string   `json:"name"`
	Score              float64  `json:"score"`
	RawScore           float64  `json:"rawScore"`
	SupportingSymptoms []string `json:"supportingSymptoms"`
	TreatmentPrinciple string   `json:"treatmentPrinciple,omitempty"`
	Organ              string   `json:"organ,omitempty"`
	Nature             string   `json:"nature,omitempty"`
}

type HerbRef struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Remedy is a formula reached from the candidate syndromes. A contraindicated
// remedy always carries at least one reason.
type Remedy struct {
	FormulaID         string    `json:"formulaId"`
	Name              string    `json:"name"`
	Score             float64   `json:"score"`
	RawScore          float64   `json:"rawScore"`
	Syndromes         []string  `json:"syndromes"`
	Herbs             []HerbRef `json:"herbs,omitempty"`
	Functions         []string  `json:"functions,omitempty"`
	Contraindicated   bool      `json:"contraindicated"`
	Contraindications []string  `json:"contraindications,omitempty"`
}

type ConstitutionMatch struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Declared   bool     `json:"declared"`
}

// ProneSyndrome is a syndrome a constitution predisposes to.
type ProneSyndrome struct {
	Constitution string   `json:"constitution"`
	SyndromeID   string   `json:"syndromeId"`
	Name         string   `json:"name"`
	Weight       float64  `json:"weight"`
	Indicators   []string `json:"indicators"`
}

type MeridianInvolvement struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Organ string   `json:"organ,omitempty"`
	Score float64  `json:"score"`
	Herbs []string `json:"herbs"`
}

type Input struct {
	Symptoms []models.Symptom      `json:"symptoms"`
	Patient  *models.PatientContext `json:"patient,omitempty"`
}

type Output struct {
	Candidates          []Candidate           `json:"candidates"`
	Remedies            []Remedy              `json:"remedies"`
	Constitutions       []ConstitutionMatch   `json:"constitutions,omitempty"`
	Meridians           []MeridianInvolvement `json:"meridians,omitempty"`
	TreatmentPrinciples []string              `json:"treatmentPrinciples,omitempty"`
	Unresolved          []string              `json:"unresolved,omitempty"`
	Confidence          float64               `json:"confidence"`
	CacheUnavailable    bool                  `json:"cacheUnavailable,omitempty"`
}
