package models

import "strings"

// PatientContext carries the optional demographics and history used to
// adjust scores and check contraindications.
type PatientContext struct {
	Age              int      `json:"age,omitempty"`
	Gender           string   `json:"gender,omitempty"` // male | female | other
	Pregnant         bool     `json:"pregnant,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	ActiveConditions []string `json:"activeConditions,omitempty"`
	MedicalHistory   []string `json:"medicalHistory,omitempty"`
	FamilyHistory    []string `json:"familyHistory,omitempty"`
	Constitution     string   `json:"constitution,omitempty"`
}

// IsExtremeAge reports whether the patient is a young child or elderly.
func (p *PatientContext) IsExtremeAge() bool {
	if p == nil || p.Age <= 0 {
		return false
	}
	return p.Age < 5 || p.Age > 65
}

func (p *PatientContext) IsFemale() bool {
	return p != nil && strings.EqualFold(p.Gender, "female")
}

// HasCondition reports whether name appears among active conditions or medical history.
func (p *PatientContext) HasCondition(name string) bool {
	if p == nil || name == "" {
		return false
	}
	return containsFold(p.ActiveConditions, name) || containsFold(p.MedicalHistory, name)
}

func (p *PatientContext) HasFamilyHistory(name string) bool {
	return p != nil && containsFold(p.FamilyHistory, name)
}

func (p *PatientContext) IsAllergicTo(names ...string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, allergy := range p.Allergies {
		for _, n := range names {
			if n != "" && strings.EqualFold(strings.TrimSpace(allergy), n) {
				return n, true
			}
		}
	}
	return "", false
}

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return true
		}
	}
	return false
}
