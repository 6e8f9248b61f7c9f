package knowledgegraph

import (
	"context"
	"math"
	"slices"
	"sort"
	"strings"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

// AnalyzeConstitution scores every constitution by the share of its indicator
// symptoms that were observed. The patient's declared constitution is always
// reported.
func (h *Handler) AnalyzeConstitution(symptomNames []string, patient *models.PatientContext) []ConstitutionMatch {
	observed := make(map[string]struct{}, len(symptomNames))
	for _, name := range symptomNames {
		observed[name] = struct{}{}
	}

	var out []ConstitutionMatch
	for _, c := range h.graph.EntitiesByType(kbase.TypeConstitution) {
		declared := patient != nil && declares(patient.Constitution, c)
		var matched []string
		for _, indicator := range c.Properties.Indicators {
			if _, ok := observed[indicator]; ok {
				matched = append(matched, indicator)
			}
		}
		score := 0.0
		if n := len(c.Properties.Indicators); n > 0 {
			score = round(float64(len(matched)) / float64(n))
		}
		if score < h.config.ConstitutionThreshold && !declared {
			continue
		}
		out = append(out, ConstitutionMatch{
			ID:         c.ID,
			Name:       c.Name,
			Score:      score,
			Indicators: matched,
			Declared:   declared,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ProneSyndromes follows ConstitutionProne from the named constitution and
// lists, for every syndrome it reaches, the symptoms that indicate it. An
// unknown constitution yields nothing.
func (h *Handler) ProneSyndromes(ctx context.Context, constitution string) ([]ProneSyndrome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(constitution) == "" {
		return nil, nil
	}
	res, err := h.resolver.Resolve(ctx, constitution, kbase.TypeConstitution)
	if errors.HasCode(err, errors.ErrCodeEntityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []ProneSyndrome
	for _, rel := range h.graph.Outgoing(res.Entity.ID, kbase.KindConstitutionProne) {
		syndrome, ok := h.graph.Entity(rel.Target)
		if !ok {
			continue
		}
		var indicators []string
		for _, in := range h.graph.Incoming(syndrome.ID, kbase.KindSymptomIndicates) {
			if symptom, ok := h.graph.Entity(in.Source); ok {
				indicators = append(indicators, symptom.Name)
			}
		}
		out = append(out, ProneSyndrome{
			Constitution: res.Entity.Name,
			SyndromeID:   syndrome.ID,
			Name:         syndrome.Name,
			Weight:       rel.Weight,
			Indicators:   indicators,
		})
	}
	return out, nil
}

func declares(constitution string, e Entity) bool {
	constitution = strings.TrimSpace(constitution)
	if constitution == "" {
		return false
	}
	if strings.EqualFold(constitution, e.Name) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.EqualFold(constitution, a) {
			return true
		}
	}
	return false
}

// AnalyzeMeridians follows HerbAffects from the herbs of non-contraindicated
// remedies and MeridianConnects on to the organ.
func (h *Handler) AnalyzeMeridians(remedies []Remedy) []MeridianInvolvement {
	scores := make(map[string]float64)
	herbs := make(map[string][]string)
	for _, r := range remedies {
		if r.Contraindicated {
			continue
		}
		for _, herb := range r.Herbs {
			for _, rel := range h.graph.Outgoing(herb.ID, kbase.KindHerbAffects) {
				scores[rel.Target] += rel.Weight * herb.Weight * r.Score
				if !slices.Contains(herbs[rel.Target], herb.Name) {
					herbs[rel.Target] = append(herbs[rel.Target], herb.Name)
				}
			}
		}
	}
	if len(scores) == 0 {
		return nil
	}

	maxScore := 0.0
	for _, v := range scores {
		maxScore = math.Max(maxScore, v)
	}

	out := make([]MeridianInvolvement, 0, len(scores))
	for id, v := range scores {
		m, _ := h.graph.Entity(id)
		involvement := MeridianInvolvement{
			ID:    id,
			Name:  m.Name,
			Organ: m.Properties.Organ,
			Score: round(v / maxScore),
			Herbs: herbs[id],
		}
		if organs := h.graph.Outgoing(id, kbase.KindMeridianConnects); len(organs) > 0 {
			if organ, ok := h.graph.Entity(organs[0].Target); ok {
				involvement.Organ = organ.Name
			}
		}
		out = append(out, involvement)
	}
	ids := make([]string, len(out))
	for i, m := range out {
		ids[i] = m.ID
	}
	rank := h.graph.Ranks(ids...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return rank[out[i].ID] < rank[out[j].ID]
	})
	return out
}

// TreatmentPrinciples lists the distinct principles of the candidates in rank order.
func TreatmentPrinciples(candidates []Candidate) []string {
	var out []string
	for _, c := range candidates {
		if c.TreatmentPrinciple != "" && !slices.Contains(out, c.TreatmentPrinciple) {
			out = append(out, c.TreatmentPrinciple)
		}
	}
	return out
}

// AnalysisConfidence weighs the mean candidate score at 0.6 and the mean
// score of usable remedies at 0.4.
func AnalysisConfidence(candidates []Candidate, remedies []Remedy) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var syndromeSum float64
	for _, c := range candidates {
		syndromeSum += c.Score
	}

	var remedySum float64
	var usable int
	for _, r := range remedies {
		if !r.Contraindicated {
			remedySum += r.Score
			usable++
		}
	}
	remedyMean := 0.0
	if usable > 0 {
		remedyMean = remedySum / float64(usable)
	}
	return math.Round((0.6*syndromeSum/float64(len(candidates))+0.4*remedyMean)*1000) / 1000
}
