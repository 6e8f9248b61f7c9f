package symptomextraction

import (
	"strings"

	"inquiry-core/internal/models"
)

// ClassifyTCM maps a canonical symptom onto pattern associations, organ
// systems, pathogenic factors and a cold/heat/deficiency nature. The first
// matching pattern sets the nature; the symptom's characteristic character
// only fills it when no pattern matched.
func ClassifyTCM(name string) TCMClassification {
	out := TCMClassification{
		PatternAssociations: []string{},
		OrganSystems:        []string{},
		PathogenicFactors:   []string{},
	}
	if canonical, ok := Canonical(name); ok {
		name = canonical
	}

	for _, p := range tcmPatterns {
		if !contains(p.symptoms, name) {
			continue
		}
		out.PatternAssociations = append(out.PatternAssociations, p.pattern)
		out.OrganSystems = models.UnionStrings(out.OrganSystems, p.organs)
		out.PathogenicFactors = models.UnionStrings(out.PathogenicFactors, p.factors)
		if out.Nature == "" {
			out.Nature = p.nature
		}
	}

	for _, c := range symptomCharacteristics {
		if !strings.Contains(name, c.char) {
			continue
		}
		out.OrganSystems = models.UnionStrings(out.OrganSystems, c.organs)
		out.PathogenicFactors = models.UnionStrings(out.PathogenicFactors, c.factors)
		if out.Nature == "" {
			out.Nature = c.nature
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
