package symptomextraction

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/metrics"
	contextanalysis "inquiry-core/internal/extraction/context-analysis"
	durationextraction "inquiry-core/internal/extraction/duration-extraction"
	negationdetection "inquiry-core/internal/extraction/negation-detection"
	severityanalysis "inquiry-core/internal/extraction/severity-analysis"
	"inquiry-core/internal/extraction/textutil"
	"inquiry-core/internal/models"
)

var errAnalyzerPanic = stderrors.New("analyzer panicked")

type taskResult[T any] struct {
	value T
	err   error
}

type mentionResult struct {
	symptom  models.Symptom
	negated  bool
	failures []string
}

// runAnalyzer runs fn under the analyzer timeout. Panics, errors and deadline
// overruns are counted and returned as EXTRACTION_FAILED.
func runAnalyzer[T any](ctx context.Context, h *Handler, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.config.AnalyzerTimeout)
	defer cancel()

	done := make(chan taskResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- taskResult[T]{err: fmt.Errorf("%w: %v", errAnalyzerPanic, r)}
			}
		}()
		v, err := fn(ctx)
		done <- taskResult[T]{value: v, err: err}
	}()

	var res taskResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	metrics.ExtractionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if res.err != nil {
		reason := failureReason(res.err)
		metrics.ExtractorFailures.WithLabelValues(name, reason).Inc()
		h.logger.Warn("analyzer degraded to default", map[string]interface{}{
			"failedAnalyzer": name,
			"reason":         reason,
			"error":          res.err.Error(),
		})
		var zero T
		return zero, errors.NewExtractionFailedError(name, res.err)
	}
	return res.value, nil
}

func failureReason(err error) string {
	switch {
	case stderrors.Is(err, errAnalyzerPanic):
		return "panic"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case stderrors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// failureSet collects analyzer names from concurrent goroutines.
type failureSet struct {
	mu    sync.Mutex
	names []string
}

func (f *failureSet) add(name string) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
}

func (f *failureSet) sorted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.names...)
	sort.Strings(out)
	return out
}

// analyzeMention runs the four analyzers for one mention concurrently and
// folds their outputs into a Symptom. wholeText lets the duration analyzer
// read the entire utterance when it mentions a single symptom.
func (h *Handler) analyzeMention(ctx context.Context, text string, runes []rune, m textutil.Match[string], wholeText bool) mentionResult {
	start, length := m.Start, m.End-m.Start
	durationLength := length
	if wholeText {
		durationLength = 0
	}

	var (
		wg       sync.WaitGroup
		failures failureSet
		neg      *negationdetection.Output
		sev      *severityanalysis.Output
		dur      *durationextraction.Output
		cx       *contextanalysis.Output
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		v, err := runAnalyzer(ctx, h, negationdetection.AnalyzerName, func(ctx context.Context) (*negationdetection.Output, error) {
			return h.negation.Execute(ctx, &negationdetection.Input{Text: text, MentionStart: start, MentionLength: length})
		})
		if err != nil {
			failures.add(negationdetection.AnalyzerName)
			return
		}
		neg = v
	}()
	go func() {
		defer wg.Done()
		v, err := runAnalyzer(ctx, h, severityanalysis.AnalyzerName, func(ctx context.Context) (*severityanalysis.Output, error) {
			return h.severity.Execute(ctx, &severityanalysis.Input{Text: text, MentionStart: start, MentionLength: length})
		})
		if err != nil {
			failures.add(severityanalysis.AnalyzerName)
			return
		}
		sev = v
	}()
	go func() {
		defer wg.Done()
		v, err := runAnalyzer(ctx, h, durationextraction.AnalyzerName, func(ctx context.Context) (*durationextraction.Output, error) {
			return h.duration.Execute(ctx, &durationextraction.Input{Text: text, MentionStart: start, MentionLength: durationLength})
		})
		if err != nil {
			failures.add(durationextraction.AnalyzerName)
			return
		}
		dur = v
	}()
	go func() {
		defer wg.Done()
		v, err := runAnalyzer(ctx, h, contextanalysis.AnalyzerName, func(ctx context.Context) (*contextanalysis.Output, error) {
			return h.contexts.Execute(ctx, &contextanalysis.Input{Text: text, MentionStart: start, MentionLength: length, Symptom: m.Value})
		})
		if err != nil {
			failures.add(contextanalysis.AnalyzerName)
			return
		}
		cx = v
	}()
	wg.Wait()

	lo, hi := textutil.SentenceBounds(runes, start)
	sym := models.Symptom{
		Name:          m.Value,
		SeverityLevel: models.SeverityUnknown,
		BodyLocation:  defsByName[m.Value].bodyPart,
		Context:       strings.TrimSpace(string(runes[lo:hi])),
	}
	applySeverity(&sym, sev)
	applyDuration(&sym, dur)
	if cx != nil {
		sym.Triggers = factorTexts(cx.Triggers)
		sym.ReliefFactors = factorTexts(cx.ReliefFactors)
		sym.AggravatingFactors = factorTexts(cx.AggravatingFactors)
		for _, a := range cx.Accompanying {
			sym.Accompanying = append(sym.Accompanying, a.Name)
		}
	}

	failed := failures.sorted()
	sym.Confidence = h.config.MentionConfidence - h.config.FailurePenalty*float64(len(failed))
	if sym.Confidence < 0 {
		sym.Confidence = 0
	}
	sym.Confidence = round3(sym.Confidence)

	return mentionResult{
		symptom:  sym,
		negated:  neg != nil && neg.Negated,
		failures: failed,
	}
}

// analyzeFocus reads severity and duration from the whole answer and
// attributes them to the focus symptom. It returns nil when neither is known.
func (h *Handler) analyzeFocus(ctx context.Context, input *Input, focus string) (*models.Symptom, []string) {
	var (
		wg       sync.WaitGroup
		failures failureSet
		sev      *severityanalysis.Output
		dur      *durationextraction.Output
	)
	if input.AnswerType != AnswerTypeDuration {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := runAnalyzer(ctx, h, severityanalysis.AnalyzerName, func(ctx context.Context) (*severityanalysis.Output, error) {
				return h.severity.Execute(ctx, &severityanalysis.Input{Text: input.Text})
			})
			if err != nil {
				failures.add(severityanalysis.AnalyzerName)
				return
			}
			sev = v
		}()
	}
	if input.AnswerType != AnswerTypeScale {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := runAnalyzer(ctx, h, durationextraction.AnalyzerName, func(ctx context.Context) (*durationextraction.Output, error) {
				return h.duration.Execute(ctx, &durationextraction.Input{Text: input.Text})
			})
			if err != nil {
				failures.add(durationextraction.AnalyzerName)
				return
			}
			dur = v
		}()
	}
	wg.Wait()

	sym := models.Symptom{Name: focus, SeverityLevel: models.SeverityUnknown}
	applySeverity(&sym, sev)
	applyDuration(&sym, dur)
	if !sym.HasSeverity() && sym.DurationDays == 0 && sym.Onset == "" && sym.Periodicity == "" {
		return nil, failures.sorted()
	}

	if sev != nil && sev.Confidence > sym.Confidence {
		sym.Confidence = sev.Confidence
	}
	if dur != nil && dur.Confidence > sym.Confidence {
		sym.Confidence = dur.Confidence
	}
	if sym.Confidence == 0 {
		sym.Confidence = 0.5
	}
	return &sym, failures.sorted()
}

func applySeverity(sym *models.Symptom, sev *severityanalysis.Output) {
	if sev == nil || sev.Level == models.SeverityUnknown || sev.Level == "" {
		return
	}
	sym.Severity = sev.Score
	sym.SeverityLevel = sev.Level
}

func applyDuration(sym *models.Symptom, dur *durationextraction.Output) {
	if dur == nil {
		return
	}
	sym.DurationDays = dur.Days
	sym.Onset = dur.Onset
	sym.Periodicity = dur.Periodicity
}

func factorTexts(factors []contextanalysis.Factor) []string {
	if len(factors) == 0 {
		return nil
	}
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = f.Text
	}
	return out
}
