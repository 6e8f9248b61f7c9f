package knowledgegraph

import (
	"context"
	"sort"
	"strings"

	"inquiry-core/internal/common/cache"
	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/models"
)

const ComponentName = "knowledge-graph"

type Handler struct {
	config   *Config
	graph    *Graph
	resolver *Resolver
	cache    cache.Cache
	logger   logger.Logger
}

// NewHandler wires the inference operations over graph. searcher and c are
// optional.
func NewHandler(config *Config, graph *Graph, searcher Searcher, c cache.Cache, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		graph:    graph,
		resolver: NewResolver(graph, config, searcher, log),
		cache:    c,
		logger:   log.WithFields(map[string]interface{}{"component": ComponentName}),
	}
}

func (h *Handler) Graph() *Graph {
	return h.graph
}

func (h *Handler) Resolver() *Resolver {
	return h.resolver
}

type cacheKey struct {
	Symptoms []string               `json:"symptoms"`
	Patient  *models.PatientContext `json:"patient,omitempty"`
}

// Execute maps the symptoms to syndromes and on to remedies, with
// constitution and meridian analysis. Results are memoised by symptom set and
// patient context; a failing cache only sets CacheUnavailable.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, errors.NewValidationError("knowledge graph input is required")
	}

	symptoms := make([]models.Symptom, 0, len(input.Symptoms))
	for _, s := range input.Symptoms {
		if strings.TrimSpace(s.Name) != "" {
			symptoms = append(symptoms, s)
		}
	}
	sort.SliceStable(symptoms, func(i, j int) bool { return symptoms[i].Name < symptoms[j].Name })

	names := make([]string, len(symptoms))
	for i, s := range symptoms {
		names[i] = s.Name
	}
	key := cache.Key(cacheKey{Symptoms: names, Patient: input.Patient})

	cacheUnavailable := false
	if h.cache != nil {
		var cached Output
		found, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			cacheUnavailable = true
			h.logger.Warn("knowledge graph cache read failed", map[string]interface{}{"error": err.Error()})
		} else if found {
			return &cached, nil
		}
	}

	resolved, unresolved := h.resolveSymptoms(ctx, symptoms)
	candidates := h.mapResolved(ctx, resolved, input.Patient)
	remedies := h.RecommendRemediesFor(candidates, input.Patient)

	resolvedNames := make([]string, len(resolved))
	for i, s := range resolved {
		resolvedNames[i] = s.name
	}

	out := &Output{
		Candidates:          candidates,
		Remedies:            remedies,
		Constitutions:       h.AnalyzeConstitution(resolvedNames, input.Patient),
		Meridians:           h.AnalyzeMeridians(remedies),
		TreatmentPrinciples: TreatmentPrinciples(candidates),
		Unresolved:          unresolved,
		Confidence:          AnalysisConfidence(candidates, remedies),
	}

	if h.cache != nil && !cacheUnavailable {
		if err := h.cache.Set(ctx, key, out); err != nil {
			cacheUnavailable = true
			h.logger.Warn("knowledge graph cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	out.CacheUnavailable = cacheUnavailable

	h.logger.Debug("knowledge graph analysis complete", map[string]interface{}{
		"symptoms":   len(symptoms),
		"candidates": len(candidates),
		"remedies":   len(remedies),
		"unresolved": len(unresolved),
	})
	return out, nil
}
