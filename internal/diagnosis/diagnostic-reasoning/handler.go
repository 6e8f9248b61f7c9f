package diagnosticreasoning

import (
	"context"
	"math"
	"strings"
	"time"

	"inquiry-core/internal/common/cache"
	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/common/metrics"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"

	"github.com/google/uuid"
)

const ComponentName = "diagnostic-reasoning"

type Handler struct {
	config     *Config
	engine     *Engine
	normalizer Normalizer
	cache      cache.Cache
	history    History
	logger     logger.Logger
	now        func() time.Time
}

// NewHandler builds the reasoning handler over the reference diseases.
// normalizer defaults to the alias table; c and history are optional.
func NewHandler(config *Config, diseases []kbase.Disease, normalizer Normalizer, c cache.Cache, history History, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if normalizer == nil {
		normalizer = AliasNormalizer{}
	}
	return &Handler{
		config:     config,
		engine:     NewEngine(config, diseases, log),
		normalizer: normalizer,
		cache:      c,
		history:    history,
		logger:     log.WithFields(map[string]interface{}{"component": ComponentName}),
		now:        time.Now,
	}
}

func (h *Handler) Engine() *Engine {
	return h.engine
}

type cacheKey struct {
	Symptoms []models.Symptom      `json:"symptoms"`
	Patient  *models.PatientContext `json:"patient,omitempty"`
}

// Execute runs a full assessment. Results are cached per symptom list and
// patient context; a failing cache or history store never fails the call.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, errors.NewValidationError("diagnosis input is required")
	}
	start := time.Now()

	symptoms := h.preprocess(ctx, input.Symptoms)
	key := cache.Key(cacheKey{Symptoms: symptoms, Patient: input.Patient})
	out := &Output{}

	var assessment *Assessment
	if h.cache != nil {
		var cached Assessment
		found, err := h.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			out.CacheUnavailable = true
			h.logger.Warn("diagnosis cache read failed", map[string]interface{}{"error": err.Error()})
		case found:
			assessment = &cached
			out.Cached = true
		}
	}

	if assessment == nil {
		assessment = h.Assess(symptoms, input.Patient)
		if h.cache != nil && !out.CacheUnavailable {
			if err := h.cache.Set(ctx, key, assessment); err != nil {
				out.CacheUnavailable = true
				h.logger.Warn("diagnosis cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	assessment.ID = uuid.NewString()
	assessment.PatientID = input.PatientID
	assessment.CreatedAt = h.now().UTC()

	if h.history != nil && input.PatientID != "" {
		if err := h.history.Append(ctx, assessment); err != nil {
			h.logger.Warn("assessment history write failed", map[string]interface{}{
				"patientId": input.PatientID,
				"error":     err.Error(),
			})
		}
	}

	outcome := outcomeOf(assessment)
	metrics.DiagnosisDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	h.logger.Info("diagnostic assessment complete", map[string]interface{}{
		"assessmentId":  assessment.ID,
		"outcome":       outcome,
		"differentials": len(assessment.Differentials),
		"overallRisk":   assessment.OverallRisk,
		"cached":        out.Cached,
	})

	out.Assessment = assessment
	return out, nil
}

// Assess is the pure part of Execute: the differential, rules, risk,
// recommendations and summary for already normalised symptoms.
func (h *Handler) Assess(symptoms []models.Symptom, patient *models.PatientContext) *Assessment {
	differentials := h.engine.Differentials(symptoms, patient)
	triggered, ruleRecs := h.engine.evaluateRules(symptoms)
	primary := h.engine.Primary(differentials)
	overall := h.engine.OverallRisk(symptoms, differentials, triggered)

	if symptoms == nil {
		symptoms = []models.Symptom{}
	}
	return &Assessment{
		Symptoms:        symptoms,
		Differentials:   differentials,
		Primary:         primary,
		Ambiguous:       primary == nil && len(differentials) > 0,
		Recommendations: h.engine.Recommendations(symptoms, differentials, overall, ruleRecs),
		TriggeredRules:  triggered,
		OverallRisk:     overall,
		Confidence:      h.engine.OverallConfidence(differentials, symptoms),
		Summary:         summarize(symptoms, differentials, primary),
	}
}

// History lists the latest assessments of a patient, newest first.
func (h *Handler) History(ctx context.Context, patientID string, limit int) ([]*Assessment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, errors.NewValidationError("patientId is required")
	}
	if h.history == nil {
		return []*Assessment{}, nil
	}
	return h.history.List(ctx, patientID, limit)
}

// preprocess normalises names, clamps severities to [0,10] and merges repeated
// mentions of the same symptom, keeping first-mention order.
func (h *Handler) preprocess(ctx context.Context, symptoms []models.Symptom) []models.Symptom {
	profile := models.NewSymptomProfile()
	for _, s := range symptoms {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		s.Name = h.normalizer.Normalize(ctx, s.Name)
		s.Severity = math.Max(0, math.Min(10, s.Severity))
		profile.Upsert(s)
	}
	return profile.List()
}

func outcomeOf(a *Assessment) string {
	switch {
	case a.Primary != nil:
		return "primary"
	case a.Ambiguous:
		return "ambiguous"
	}
	return "no_candidates"
}
