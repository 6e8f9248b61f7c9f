package symptomextraction

import (
	"strings"
	"unicode/utf8"

	"inquiry-core/internal/extraction/textutil"
	"inquiry-core/internal/models"
)

const (
	SideLeft      = "left"
	SideRight     = "right"
	SideBilateral = "bilateral"
	SideCentral   = "central"
)

// bodyLocations finds body parts outside negated mentions and attaches each
// symptom to the part its lexicon entry names.
func bodyLocations(runes []rune, negated []bool, symptoms []models.Symptom) []models.BodyLocation {
	mask := append([]bool(nil), negated...)
	index := make(map[string]int)
	out := make([]models.BodyLocation, 0)

	for _, m := range bodyPartLexicon.FindAllMasked(runes, 0, len(runes), mask) {
		side := sideOf(runes, m.Start, m.End)
		if i, ok := index[m.Value]; ok {
			if out[i].Side == SideCentral && side != SideCentral {
				out[i].Side = side
			}
			continue
		}
		index[m.Value] = len(out)
		out = append(out, models.BodyLocation{Name: m.Value, Side: side})
	}

	for _, s := range symptoms {
		part := defsByName[s.Name].bodyPart
		if part == "" {
			continue
		}
		i, ok := index[part]
		if !ok {
			i = len(out)
			index[part] = i
			out = append(out, models.BodyLocation{Name: part, Side: SideCentral})
		}
		out[i].Symptoms = models.UnionStrings(out[i].Symptoms, []string{s.Name})
	}
	return out
}

func sideOf(runes []rune, start, end int) string {
	var before, after rune
	if start > 0 {
		before = runes[start-1]
	}
	if end < len(runes) {
		after = runes[end]
	}
	switch {
	case before == '左' || after == '左':
		return SideLeft
	case before == '右' || after == '右':
		return SideRight
	case before == '两' || before == '双':
		return SideBilateral
	default:
		return SideCentral
	}
}

// temporalFactors reports each temporal keyword with its sentence and the
// symptoms mentioned in that sentence.
func temporalFactors(text string, runes []rune, negated []bool, kept []textutil.Match[string]) []models.TemporalFactor {
	out := make([]models.TemporalFactor, 0)
	for _, family := range temporalFamilies {
		for _, kw := range family.keywords {
			idx := strings.Index(text, kw)
			if idx < 0 {
				continue
			}
			pos := utf8.RuneCountInString(text[:idx])
			if negated[pos] {
				continue
			}
			lo, hi := textutil.SentenceBounds(runes, pos)
			factor := models.TemporalFactor{
				Type:        family.kind,
				Description: strings.TrimSpace(string(runes[lo:hi])),
			}
			for _, m := range kept {
				if m.Start >= lo && m.End <= hi {
					factor.Symptoms = models.UnionStrings(factor.Symptoms, []string{m.Value})
				}
			}
			out = append(out, factor)
		}
	}
	return out
}
