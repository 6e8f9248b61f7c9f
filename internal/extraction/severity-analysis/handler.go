package severityanalysis

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/extraction/textutil"
	"inquiry-core/internal/models"
)

const AnalyzerName = "severity-analysis"

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

	lo, hi := 0, len(runes)
	if input.MentionLength > 0 {
		sStart, sEnd := textutil.SentenceBounds(runes, input.MentionStart)
		lo, hi = textutil.Window(input.MentionStart, input.MentionStart+input.MentionLength, h.config.Window, sStart, sEnd)
	}
	window := string(runes[lo:hi])

	if out, ok := explicitRating(input.Text, window, input.MentionLength == 0); ok {
		return out, nil
	}
	return h.score(runes, lo, hi), nil
}

// explicitRating reads "8分", "8/10" or a bare number answer.
func explicitRating(text, window string, wholeText bool) (*Output, bool) {
	if wholeText {
		if m := bareRatingPattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 10 {
				return ratingOutput(v, m[0]), true
			}
		}
	}
	for _, m := range ratingPattern.FindAllStringSubmatch(window, -1) {
		if m[2] == "分钟" {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 || v > 10 {
			continue
		}
		return ratingOutput(v, m[0]), true
	}
	return nil, false
}

func ratingOutput(v float64, matched string) *Output {
	return &Output{
		Level:      LevelForScore(v),
		Score:      v,
		Confidence: 0.95,
		Explicit:   true,
		Matched:    []string{matched},
	}
}

func (h *Handler) score(runes []rune, lo, hi int) *Output {
	tiers := map[string]float64{
		models.SeverityMild:     0,
		models.SeverityModerate: 0,
		models.SeveritySevere:   0,
	}
	out := &Output{Level: models.SeverityUnknown}

	for _, m := range lexicon.FindAll(runes, lo, hi) {
		tiers[models.SeverityMild] += m.Value.mild
		tiers[models.SeverityModerate] += m.Value.moderate
		tiers[models.SeveritySevere] += m.Value.severe
		if m.Value.functional {
			out.FunctionalImpact = true
		}
		out.Matched = append(out.Matched, m.Term)
	}
	out.TierScores = tiers

	// ties go to the more severe tier
	best, bestScore := models.SeverityUnknown, 0.0
	for _, level := range []string{models.SeveritySevere, models.SeverityModerate, models.SeverityMild} {
		if tiers[level] > bestScore {
			best, bestScore = level, tiers[level]
		}
	}
	if bestScore < h.config.Floor {
		return out
	}

	b := bands[best]
	out.Level = best
	out.Score = round1(b.lo + (b.hi-b.lo)*math.Min(1, bestScore/h.config.Saturation))
	out.Confidence = round1(math.Min(0.9, 0.5+0.3*bestScore))
	return out
}

// LevelForScore maps a 0-10 rating onto a severity level.
func LevelForScore(v float64) string {
	switch {
	case v >= 7:
		return models.SeveritySevere
	case v >= 4:
		return models.SeverityModerate
	case v > 0:
		return models.SeverityMild
	default:
		return models.SeverityUnknown
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
