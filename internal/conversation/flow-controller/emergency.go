package flowcontroller

import (
	"context"
	"fmt"
	"strings"

	"inquiry-core/internal/models"
)

// Emergency trigger sources, also used as the metric label.
const (
	EmergencySourceKeyword  = "keyword"
	EmergencySourceSeverity = "severity"
	EmergencySourceFailure  = "detector_failure"
)

type EmergencySignal struct {
	Triggered bool
	Source    string
	Trigger   string
}

// EmergencyDetector inspects the latest answer and the severities it reported.
type EmergencyDetector interface {
	Detect(ctx context.Context, answer string, observed []models.Symptom) (EmergencySignal, error)
}

type KeywordDetector struct {
	keywords  []string
	threshold float64
}

func NewKeywordDetector(keywords []string, severityThreshold float64) *KeywordDetector {
	return &KeywordDetector{keywords: keywords, threshold: severityThreshold}
}

// Detect matches keywords as plain substrings, negated or not.
func (d *KeywordDetector) Detect(ctx context.Context, answer string, observed []models.Symptom) (EmergencySignal, error) {
	if err := ctx.Err(); err != nil {
		return EmergencySignal{}, err
	}
	text := strings.ToLower(answer)
	for _, kw := range d.keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return EmergencySignal{Triggered: true, Source: EmergencySourceKeyword, Trigger: kw}, nil
		}
	}
	if d.threshold > 0 {
		for _, s := range observed {
			if s.Severity >= d.threshold {
				return EmergencySignal{
					Triggered: true,
					Source:    EmergencySourceSeverity,
					Trigger:   fmt.Sprintf("%s:%g", s.Name, s.Severity),
				}, nil
			}
		}
	}
	return EmergencySignal{}, nil
}

// detectSafely turns a detector error or panic into a triggered signal.
func detectSafely(ctx context.Context, d EmergencyDetector, answer string, observed []models.Symptom) (sig EmergencySignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("emergency detector panic: %v", r)
		}
		if err != nil {
			sig = EmergencySignal{Triggered: true, Source: EmergencySourceFailure, Trigger: err.Error()}
		}
	}()
	return d.Detect(ctx, answer, observed)
}
