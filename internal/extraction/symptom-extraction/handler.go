package symptomextraction

import (
	"context"
	"sort"
	"strings"
	"sync"

	"inquiry-core/internal/common/logger"
	contextanalysis "inquiry-core/internal/extraction/context-analysis"
	durationextraction "inquiry-core/internal/extraction/duration-extraction"
	negationdetection "inquiry-core/internal/extraction/negation-detection"
	severityanalysis "inquiry-core/internal/extraction/severity-analysis"
	"inquiry-core/internal/extraction/textutil"
	"inquiry-core/internal/models"
)

const AnalyzerName = "symptom-extraction"

type negationAnalyzer interface {
	Execute(ctx context.Context, input *negationdetection.Input) (*negationdetection.Output, error)
}

type severityAnalyzer interface {
	Execute(ctx context.Context, input *severityanalysis.Input) (*severityanalysis.Output, error)
}

type durationAnalyzer interface {
	Execute(ctx context.Context, input *durationextraction.Input) (*durationextraction.Output, error)
}

type contextAnalyzer interface {
	Execute(ctx context.Context, input *contextanalysis.Input) (*contextanalysis.Output, error)
}

type Handler struct {
	config   *Config
	logger   logger.Logger
	negation negationAnalyzer
	severity severityAnalyzer
	duration durationAnalyzer
	contexts contextAnalyzer
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	ctxConfig := contextanalysis.LoadConfig()
	ctxConfig.SymptomTerms = symptomTerms

	return &Handler{
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"analyzer": AnalyzerName}),
		negation: negationdetection.NewHandler(negationdetection.LoadConfig(), log),
		severity: severityanalysis.NewHandler(severityanalysis.LoadConfig(), log),
		duration: durationextraction.NewHandler(durationextraction.LoadConfig(), log),
		contexts: contextanalysis.NewHandler(ctxConfig, log),
	}
}

// Execute extracts the symptoms of one utterance. It never fails on the text
// itself: unrecognised input yields an empty output with confidence 0, and a
// failing analyzer only degrades its own part of the result.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &Output{
		Symptoms:        []models.Symptom{},
		BodyLocations:   []models.BodyLocation{},
		TemporalFactors: []models.TemporalFactor{},
	}
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return out, nil
	}

	runes := []rune(input.Text)
	mentions := symptomLexicon.FindAll(runes, 0, len(runes))
	if len(mentions) > h.config.MaxSymptoms {
		mentions = mentions[:h.config.MaxSymptoms]
	}

	results := make([]mentionResult, len(mentions))
	var wg sync.WaitGroup
	for i, m := range mentions {
		wg.Add(1)
		go func(i int, m textutil.Match[string]) {
			defer wg.Done()
			results[i] = h.analyzeMention(ctx, input.Text, runes, m, len(mentions) == 1)
		}(i, m)
	}
	wg.Wait()

	profile := models.NewSymptomProfile()
	negatedMask := make([]bool, len(runes))
	degraded := make(map[string]bool)
	var kept []textutil.Match[string]
	for i, r := range results {
		for _, name := range r.failures {
			degraded[name] = true
		}
		if r.negated {
			for k := mentions[i].Start; k < mentions[i].End; k++ {
				negatedMask[k] = true
			}
			out.NegatedSymptoms = models.UnionStrings(out.NegatedSymptoms, []string{r.symptom.Name})
			continue
		}
		profile.Upsert(r.symptom)
		kept = append(kept, mentions[i])
	}
	out.Symptoms = profile.List()

	if focus := h.focusSymptom(input); focus != "" && h.wantsFocusUpdate(input, profile, focus) {
		update, failures := h.analyzeFocus(ctx, input, focus)
		for _, name := range failures {
			degraded[name] = true
		}
		if update != nil {
			out.ProfileUpdates = []models.Symptom{*update}
		}
	}

	out.BodyLocations = bodyLocations(runes, negatedMask, out.Symptoms)
	out.TemporalFactors = temporalFactors(input.Text, runes, negatedMask, kept)
	out.Confidence = overallConfidence(out)
	for name := range degraded {
		out.Degraded = append(out.Degraded, name)
	}
	sort.Strings(out.Degraded)

	h.logger.Debug("symptoms extracted", map[string]interface{}{
		"symptoms":   len(out.Symptoms),
		"negated":    len(out.NegatedSymptoms),
		"updates":    len(out.ProfileUpdates),
		"confidence": out.Confidence,
		"degraded":   out.Degraded,
	})
	return out, nil
}

func (h *Handler) focusSymptom(input *Input) string {
	if input.FocusSymptom != "" {
		return input.FocusSymptom
	}
	if main, ok := input.Profile.Main(); ok {
		return main.Name
	}
	return ""
}

// wantsFocusUpdate is true for answers that name no symptom, and for rating or
// duration answers that do not mention the focus symptom itself.
func (h *Handler) wantsFocusUpdate(input *Input, found *models.SymptomProfile, focus string) bool {
	if found.Len() == 0 {
		return true
	}
	if _, ok := found.Get(focus); ok {
		return false
	}
	return input.AnswerType == AnswerTypeScale || input.AnswerType == AnswerTypeDuration
}

// overallConfidence weights symptoms, locations and temporal factors, with a
// bonus for every signal category beyond the first.
func overallConfidence(out *Output) float64 {
	var symConf float64
	observed := append(append([]models.Symptom{}, out.Symptoms...), out.ProfileUpdates...)
	if len(observed) > 0 {
		for _, s := range observed {
			symConf += s.Confidence
		}
		symConf /= float64(len(observed))
	}
	var locConf, tempConf float64
	if len(out.BodyLocations) > 0 {
		locConf = 0.8
	}
	if len(out.TemporalFactors) > 0 {
		tempConf = 0.7
	}

	categories := 0
	for _, c := range []float64{symConf, locConf, tempConf} {
		if c > 0 {
			categories++
		}
	}
	if categories == 0 {
		return 0
	}
	conf := 0.6*symConf + 0.15*locConf + 0.25*tempConf + 0.05*float64(categories-1)
	if conf > 1 {
		conf = 1
	}
	return round3(conf)
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
