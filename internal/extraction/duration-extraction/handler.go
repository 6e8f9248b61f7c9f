package durationextraction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/extraction/textutil"
)

const AnalyzerName = "duration-extraction"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"analyzer": AnalyzerName}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runes := []rune(input.Text)
	if input.MentionStart < 0 || input.MentionLength < 0 || input.MentionStart+input.MentionLength > len(runes) {
		return nil, errors.NewValidationError(fmt.Sprintf(
			"mention [%d,+%d) outside text of %d runes", input.MentionStart, input.MentionLength, len(runes)))
	}

	text := input.Text
	if input.MentionLength > 0 {
		lo, hi := textutil.SentenceBounds(runes, input.MentionStart)
		text = string(runes[lo:hi])
	}

	out := &Output{Expressions: h.scan(text)}
	h.selectDuration(out)
	out.Onset = firstCue(text, onsetOrder)
	out.Periodicity = firstCue(text, periodicityOrder)
	return out, nil
}

type found struct {
	pos int
	Expression
}

type claims [][2]int

// claim reserves [lo,hi) unless it overlaps an earlier, higher priority match.
func (c *claims) claim(lo, hi int) bool {
	for _, s := range *c {
		if lo < s[1] && s[0] < hi {
			return false
		}
	}
	*c = append(*c, [2]int{lo, hi})
	return true
}

func (h *Handler) scan(text string) []Expression {
	var hits []found
	var taken claims
	add := func(m []int, days float64, kind string, future bool) {
		hits = append(hits, found{pos: m[0], Expression: Expression{
			Text:   text[m[0]:m[1]],
			Days:   round2(days),
			Kind:   kind,
			Future: future,
		}})
	}

	for _, m := range numericRangePattern.FindAllStringSubmatchIndex(text, -1) {
		a, errA := strconv.ParseFloat(group(text, m, 1), 64)
		b, errB := strconv.ParseFloat(group(text, m, 2), 64)
		if errA != nil || errB != nil || !taken.claim(m[0], m[1]) {
			continue
		}
		add(m, (a+b)/2*unitDays[group(text, m, 3)], KindRange, false)
	}

	for _, m := range numeralRangePattern.FindAllStringSubmatchIndex(text, -1) {
		a, okA := parseNumeral(group(text, m, 1))
		b, okB := parseNumeral(group(text, m, 2))
		if !okA || !okB || !taken.claim(m[0], m[1]) {
			continue
		}
		add(m, (a+b)/2*unitDays[group(text, m, 3)], KindRange, false)
	}

	// 三四天: adjacent numerals one apart
	for _, m := range adjacentPattern.FindAllStringSubmatchIndex(text, -1) {
		a, _ := parseNumeral(group(text, m, 1))
		b, _ := parseNumeral(group(text, m, 2))
		if b != a+1 || !taken.claim(m[0], m[1]) {
			continue
		}
		add(m, (a+b)/2*unitDays[group(text, m, 3)], KindRange, false)
	}

	for _, m := range numericPattern.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.ParseFloat(group(text, m, 1), 64)
		if err != nil || !taken.claim(m[0], m[1]) {
			continue
		}
		h.addSingle(add, text, m, n, KindNumeric)
	}

	for _, m := range numeralPattern.FindAllStringSubmatchIndex(text, -1) {
		n, ok := parseNumeral(group(text, m, 1))
		if !ok || !taken.claim(m[0], m[1]) {
			continue
		}
		h.addSingle(add, text, m, n, KindNumeral)
	}

	for _, m := range fuzzyPattern.FindAllStringIndex(text, -1) {
		if !taken.claim(m[0], m[1]) {
			continue
		}
		days := fuzzyDays[text[m[0]:m[1]]]
		add(m, days, KindFuzzy, days < 0)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]Expression, len(hits))
	for i, f := range hits {
		out[i] = f.Expression
	}
	return out
}

func (h *Handler) addSingle(add func([]int, float64, string, bool), text string, m []int, n float64, kind string) {
	if group(text, m, 2) != "" {
		n += 0.5
	}
	days := n * unitDays[group(text, m, 3)]
	if group(text, m, 4) != "" {
		add(m, -days, kind, true)
		return
	}
	add(m, days, kind, false)
}

// selectDuration keeps the longest plausible past duration. Exact expressions
// outrank fuzzy ones; future references are never chosen.
func (h *Handler) selectDuration(out *Output) {
	var best *Expression
	pick := func(fuzzy bool) {
		for i := range out.Expressions {
			e := &out.Expressions[i]
			if e.Future || e.Days <= 0 || e.Days > h.config.MaxPlausibleDays {
				continue
			}
			if (e.Kind == KindFuzzy) != fuzzy {
				continue
			}
			if best == nil || e.Days > best.Days {
				best = e
			}
		}
	}
	pick(false)
	if best == nil {
		pick(true)
	}
	if best == nil {
		return
	}

	out.Days = best.Days
	out.Kind = best.Kind
	switch best.Kind {
	case KindRange:
		out.Confidence = 0.8
	case KindFuzzy:
		out.Confidence = 0.6
	default:
		out.Confidence = 0.9
	}
}

func firstCue(text string, order []struct {
	value string
	cues  []string
}) string {
	for _, o := range order {
		if _, ok := textutil.ContainsAny(text, o.cues); ok {
			return o.value
		}
	}
	return ""
}

func group(text string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
