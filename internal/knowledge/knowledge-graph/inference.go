package knowledgegraph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

type resolvedSymptom struct {
	id   string
	name string
}

// resolveSymptoms maps symptom names onto Symptom entities, skipping
// duplicates. Names that cannot be resolved are returned separately.
func (h *Handler) resolveSymptoms(ctx context.Context, symptoms []models.Symptom) ([]resolvedSymptom, []string) {
	var (
		resolved   []resolvedSymptom
		unresolved []string
		seen       = make(map[string]struct{})
	)
	for _, s := range symptoms {
		res, err := h.resolver.Resolve(ctx, s.Name, kbase.TypeSymptom)
		if err != nil {
			unresolved = append(unresolved, s.Name)
			continue
		}
		if _, dup := seen[res.Entity.ID]; dup {
			continue
		}
		seen[res.Entity.ID] = struct{}{}
		resolved = append(resolved, resolvedSymptom{id: res.Entity.ID, name: res.Entity.Name})
	}
	return resolved, unresolved
}

// MapSymptomsToCandidates sums SymptomIndicates weights per syndrome, adds the
// declared constitution bonus, normalises by the best score and keeps the
// syndromes at or above MatchThreshold.
func (h *Handler) MapSymptomsToCandidates(ctx context.Context, symptoms []models.Symptom, patient *models.PatientContext) []Candidate {
	resolved, _ := h.resolveSymptoms(ctx, symptoms)
	return h.mapResolved(ctx, resolved, patient)
}

func (h *Handler) mapResolved(ctx context.Context, symptoms []resolvedSymptom, patient *models.PatientContext) []Candidate {
	raw := make(map[string]float64)
	support := make(map[string][]string)
	for _, s := range symptoms {
		for _, rel := range h.graph.Outgoing(s.id, kbase.KindSymptomIndicates) {
			raw[rel.Target] += rel.Weight
			support[rel.Target] = append(support[rel.Target], s.name)
		}
	}
	if len(raw) == 0 {
		return []Candidate{}
	}

	if constitution := h.declaredConstitution(ctx, patient); constitution != "" {
		for _, rel := range h.graph.Outgoing(constitution, kbase.KindConstitutionProne) {
			if _, voted := raw[rel.Target]; voted {
				raw[rel.Target] += rel.Weight * h.config.ConstitutionBonus
			}
		}
	}

	maxScore := 0.0
	for _, v := range raw {
		maxScore = math.Max(maxScore, v)
	}

	candidates := make([]Candidate, 0, len(raw))
	for id, v := range raw {
		score := round(v / maxScore)
		if score < h.config.MatchThreshold {
			continue
		}
		e, _ := h.graph.Entity(id)
		candidates = append(candidates, Candidate{
			SyndromeID:         id,
			Name:               e.Name,
			Score:              score,
			RawScore:           round(v),
			SupportingSymptoms: support[id],
			TreatmentPrinciple: e.Properties.TreatmentPrinciple,
			Organ:              e.Properties.Organ,
			Nature:             e.Properties.Nature,
		})
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.SyndromeID
	}
	rank := h.graph.Ranks(ids...)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return rank[candidates[i].SyndromeID] < rank[candidates[j].SyndromeID]
	})
	if len(candidates) > h.config.MaxCandidates {
		candidates = candidates[:h.config.MaxCandidates]
	}
	return candidates
}

func (h *Handler) declaredConstitution(ctx context.Context, patient *models.PatientContext) string {
	if patient == nil || strings.TrimSpace(patient.Constitution) == "" {
		return ""
	}
	res, err := h.resolver.Resolve(ctx, patient.Constitution, kbase.TypeConstitution)
	if err != nil {
		return ""
	}
	return res.Entity.ID
}

// RecommendRemediesFor follows SyndromeTreats one hop from the candidates,
// weighting each edge by the candidate score, normalises by the best formula
// and keeps formulas at or above RemedyThreshold. Contraindicated formulas
// stay in the list with their reasons.
func (h *Handler) RecommendRemediesFor(candidates []Candidate, patient *models.PatientContext) []Remedy {
	raw := make(map[string]float64)
	via := make(map[string][]string)
	for _, c := range candidates {
		for _, rel := range h.graph.Outgoing(c.SyndromeID, kbase.KindSyndromeTreats) {
			raw[rel.Target] += rel.Weight * c.Score
			via[rel.Target] = append(via[rel.Target], c.Name)
		}
	}
	if len(raw) == 0 {
		return []Remedy{}
	}

	maxScore := 0.0
	for _, v := range raw {
		maxScore = math.Max(maxScore, v)
	}

	remedies := make([]Remedy, 0, len(raw))
	for id, v := range raw {
		score := round(v / maxScore)
		if score < h.config.RemedyThreshold {
			continue
		}
		formula, _ := h.graph.Entity(id)
		remedy := Remedy{
			FormulaID: id,
			Name:      formula.Name,
			Score:     score,
			RawScore:  round(v),
			Syndromes: via[id],
			Functions: formula.Properties.Functions,
		}
		for _, rel := range h.graph.Outgoing(id, kbase.KindFormulaContains) {
			herb, _ := h.graph.Entity(rel.Target)
			remedy.Herbs = append(remedy.Herbs, HerbRef{ID: herb.ID, Name: herb.Name, Weight: rel.Weight})
		}
		remedy.Contraindications = h.contraindications(formula, remedy.Herbs, patient)
		remedy.Contraindicated = len(remedy.Contraindications) > 0
		remedies = append(remedies, remedy)
	}

	ids := make([]string, len(remedies))
	for i, r := range remedies {
		ids[i] = r.FormulaID
	}
	rank := h.graph.Ranks(ids...)
	sort.Slice(remedies, func(i, j int) bool {
		if remedies[i].Score != remedies[j].Score {
			return remedies[i].Score > remedies[j].Score
		}
		return rank[remedies[i].FormulaID] < rank[remedies[j].FormulaID]
	})
	if len(remedies) > h.config.MaxRemedies {
		remedies = remedies[:h.config.MaxRemedies]
	}
	return remedies
}

// contraindications lists every reason the formula or one of its herbs must
// be flagged for this patient.
func (h *Handler) contraindications(formula Entity, herbs []HerbRef, patient *models.PatientContext) []string {
	if patient == nil {
		return nil
	}

	subjects := []Entity{formula}
	for _, ref := range herbs {
		if herb, ok := h.graph.Entity(ref.ID); ok {
			subjects = append(subjects, herb)
		}
	}

	var reasons []string
	add := func(reason string) {
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
	}

	for _, subject := range subjects {
		for _, rel := range h.graph.Outgoing(subject.ID, kbase.KindContraindication) {
			target, ok := h.graph.Entity(rel.Target)
			if !ok || !patientMatches(patient, target) {
				continue
			}
			reason := rel.Reason
			if reason == "" {
				reason = fmt.Sprintf("%s与%s相冲", subject.Name, target.Name)
			}
			add(fmt.Sprintf("%s：%s", subject.Name, reason))
		}

		if allergen, ok := patient.IsAllergicTo(append([]string{subject.Name}, subject.Aliases...)...); ok {
			add(fmt.Sprintf("%s：患者对%s过敏", subject.Name, allergen))
		}

		if patient.Pregnant {
			switch subject.Properties.PregnancyCaution {
			case kbase.PregnancyForbidden:
				add(fmt.Sprintf("%s：孕妇禁用", subject.Name))
			case kbase.PregnancyCaution:
				add(fmt.Sprintf("%s：孕妇慎用", subject.Name))
			}
		}

		if minAge := subject.Properties.MinAge; minAge > 0 && patient.Age > 0 && patient.Age < minAge {
			add(fmt.Sprintf("%s：不适用于%d岁以下患者", subject.Name, minAge))
		}
	}
	return reasons
}

// patientMatches reports whether the contraindication target names one of the
// patient's conditions, history entries or constitution.
func patientMatches(patient *models.PatientContext, target Entity) bool {
	for _, name := range append([]string{target.Name}, target.Aliases...) {
		if patient.HasCondition(name) || strings.EqualFold(strings.TrimSpace(patient.Constitution), name) {
			return true
		}
	}
	return false
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
