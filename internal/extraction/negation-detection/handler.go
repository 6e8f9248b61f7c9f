package negationdetection

import (
	"context"
	"fmt"
	"math"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/extraction/textutil"
)

const AnalyzerName = "negation-detection"

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

// Execute decides whether the mention at input.MentionStart is negated by a
// cue earlier in the same clause.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runes := []rune(input.Text)
	if input.MentionStart < 0 || input.MentionLength <= 0 || input.MentionStart+input.MentionLength > len(runes) {
		return nil, errors.NewValidationError(fmt.Sprintf(
			"mention [%d,+%d) outside text of %d runes", input.MentionStart, input.MentionLength, len(runes)))
	}

	out := h.detect(runes, input.MentionStart, input.MentionLength)
	if out.Negated {
		h.logger.Debug("mention negated", map[string]interface{}{
			"cue":        out.Cue,
			"confidence": out.Confidence,
		})
	}
	return out, nil
}

func (h *Handler) detect(runes []rune, start, length int) *Output {
	clauseStart, _ := textutil.ClauseBounds(runes, start)
	lo := start - h.config.Window
	if lo < clauseStart {
		lo = clauseStart
	}

	// Exceptions may run into the mention, so mask a little past it.
	mask := make([]bool, len(runes))
	exceptionLexicon.FindAllMasked(runes, lo, textutil.Clamp(start+length, 0, len(runes)), mask)
	cues := cueLexicon.FindAllMasked(runes, lo, start, mask)

	best := &Output{}
	for _, m := range cues {
		distance := start - m.End
		confidence := m.Value.strength * (1 - 0.5*float64(distance)/float64(h.config.Window+1))

		contrast := len(contrastLexicon.FindAll(runes, m.End, start)) > 0
		if contrast {
			confidence *= h.config.ContrastPenalty
		}
		confidence = round(confidence)

		if confidence > best.Confidence {
			best = &Output{
				Confidence: confidence,
				Cue:        m.Term,
				CueType:    m.Value.family,
				Distance:   distance,
				Contrast:   contrast,
			}
		}
	}
	best.Negated = best.Confidence >= h.config.Threshold
	return best
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
