package contextanalysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	negationdetection "inquiry-core/internal/extraction/negation-detection"
	"inquiry-core/internal/extraction/textutil"
)

const AnalyzerName = "context-analysis"

const (
	indicatorWeight  = 0.5
	resultWeight     = 0.4
	sameClauseWeight = 0.1

	accompanyingBase       = 0.7
	accompanyingSameClause = 0.8
)

type Handler struct {
	config     *Config
	logger     logger.Logger
	symptoms   *textutil.Lexicon[string]
	categories *textutil.Lexicon[string]
	negation   *negationdetection.Handler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	terms := config.SymptomTerms
	if terms == nil {
		terms = defaultSymptomTerms
	}
	return &Handler{
		config:     config,
		logger:     log.WithFields(map[string]interface{}{"analyzer": AnalyzerName}),
		symptoms:   textutil.NewLexicon(terms),
		categories: textutil.NewLexicon(categoryTerms),
		negation:   negationdetection.NewHandler(nil, log),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runes := []rune(input.Text)
	start, end := input.MentionStart, input.MentionStart+input.MentionLength
	if start < 0 || input.MentionLength <= 0 || end > len(runes) {
		return nil, errors.NewValidationError(fmt.Sprintf(
			"mention [%d,+%d) outside text of %d runes", input.MentionStart, input.MentionLength, len(runes)))
	}

	s := &scan{
		runes: runes,
		mask:  make([]bool, len(runes)),
	}
	s.lo, s.hi = textutil.Window(start, end, h.config.Window, 0, len(runes))
	s.clauseLo, s.clauseHi = textutil.ClauseBounds(runes, start)
	s.window = string(runes[s.lo:s.hi])

	factors := map[factorKind]*factorSet{
		kindTrigger:     newFactorSet(),
		kindRelief:      newFactorSet(),
		kindAggravation: newFactorSet(),
	}
	h.positional(s, causeEffectPattern, factors[kindTrigger])
	h.positional(s, effectReliefPattern, factors[kindRelief])
	h.positional(s, causeAggravationPattern, factors[kindAggravation])

	for _, m := range triggerKeywords.FindAllMasked(runes, s.lo, s.hi, s.mask) {
		factors[kindTrigger].add(Factor{
			Text:       m.Term,
			Category:   m.Value,
			Confidence: s.confidence(m.Start, m.End, false),
			SameClause: s.inClause(m.Start, m.End),
		})
	}

	out := &Output{
		Triggers:           factors[kindTrigger].ranked(h.config.MaxTriggers),
		ReliefFactors:      factors[kindRelief].ranked(h.config.MaxReliefs),
		AggravatingFactors: factors[kindAggravation].ranked(h.config.MaxAggravators),
		Accompanying:       h.accompanying(ctx, input, s, start, end),
		Timing:             timing(s.window),
		Quality:            quality(s.window),
	}

	h.logger.Debug("context analysed", map[string]interface{}{
		"triggers":     len(out.Triggers),
		"reliefs":      len(out.ReliefFactors),
		"aggravators":  len(out.AggravatingFactors),
		"accompanying": len(out.Accompanying),
	})
	return out, nil
}

type scan struct {
	runes              []rune
	mask               []bool
	window             string
	lo, hi             int
	clauseLo, clauseHi int
}

// span converts byte offsets in the window to rune offsets in the text.
func (s *scan) span(byteStart, byteEnd int) (int, int) {
	return s.lo + utf8.RuneCountInString(s.window[:byteStart]), s.lo + utf8.RuneCountInString(s.window[:byteEnd])
}

func (s *scan) inClause(from, to int) bool {
	return from >= s.clauseLo && to <= s.clauseHi
}

func (s *scan) confidence(from, to int, result bool) float64 {
	c := indicatorWeight
	if result {
		c += resultWeight
	}
	if s.inClause(from, to) {
		c += sameClauseWeight
	}
	if c > 1 {
		c = 1
	}
	return round(c)
}

func (h *Handler) positional(s *scan, pattern *regexp.Regexp, into *factorSet) {
	for _, m := range pattern.FindAllStringSubmatchIndex(s.window, -1) {
		from, to := s.span(m[0], m[1])
		for k := from; k < to; k++ {
			s.mask[k] = true
		}
		text := normalize(s.window[m[2]:m[3]])
		if text == "" {
			continue
		}
		into.add(Factor{
			Text:       text,
			Category:   h.category(text),
			Confidence: s.confidence(from, to, m[4] >= 0),
			SameClause: s.inClause(from, to),
		})
	}
}

func (h *Handler) category(text string) string {
	r := []rune(text)
	if hits := h.categories.FindAll(r, 0, len(r)); len(hits) > 0 {
		return hits[0].Value
	}
	return CategoryOther
}

// accompanying lists other, non-negated symptoms inside the window.
func (h *Handler) accompanying(ctx context.Context, input *Input, s *scan, start, end int) []Accompanying {
	mask := make([]bool, len(s.runes))
	for k := start; k < end; k++ {
		mask[k] = true
	}

	seen := make(map[string]int)
	out := make([]Accompanying, 0)
	for _, m := range h.symptoms.FindAllMasked(s.runes, s.lo, s.hi, mask) {
		if m.Value == input.Symptom {
			continue
		}
		neg, err := h.negation.Execute(ctx, &negationdetection.Input{
			Text:          input.Text,
			MentionStart:  m.Start,
			MentionLength: m.End - m.Start,
		})
		if err == nil && neg.Negated {
			continue
		}

		conf := accompanyingBase
		if s.inClause(m.Start, m.End) {
			conf = accompanyingSameClause
		}
		if i, ok := seen[m.Value]; ok {
			if conf > out[i].Confidence {
				out[i].Confidence = conf
			}
			continue
		}
		seen[m.Value] = len(out)
		out = append(out, Accompanying{Name: m.Value, Confidence: conf})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > h.config.MaxAccompanying {
		out = out[:h.config.MaxAccompanying]
	}
	return out
}

func timing(window string) []string {
	var out []string
	for _, f := range timingFeatures {
		if _, ok := textutil.ContainsAny(window, f.terms); ok {
			out = append(out, f.feature)
		}
	}
	return out
}

func quality(window string) []Quality {
	var out []Quality
	for _, f := range qualityFeatures {
		for _, term := range f.terms {
			if strings.Contains(window, term) {
				out = append(out, Quality{Type: f.kind, Description: term})
			}
		}
	}
	return out
}

// factorSet dedupes by normalised text, keeping the highest confidence and
// the first-seen order.
type factorSet struct {
	index map[string]int
	items []Factor
}

func newFactorSet() *factorSet {
	return &factorSet{index: make(map[string]int)}
}

func (f *factorSet) add(factor Factor) {
	if i, ok := f.index[factor.Text]; ok {
		if factor.Confidence > f.items[i].Confidence {
			f.items[i] = factor
		}
		return
	}
	f.index[factor.Text] = len(f.items)
	f.items = append(f.items, factor)
}

func (f *factorSet) ranked(limit int) []Factor {
	out := make([]Factor, len(f.items))
	copy(out, f.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "了", "")
	return strings.Join(strings.Fields(s), "")
}

func round(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
