package diagnosticreasoning

import (
	"context"
	"strings"

	symptomextraction "inquiry-core/internal/extraction/symptom-extraction"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/pkg/kbase"
)

// Normalizer maps a symptom name onto the canonical name used by the
// reference diseases.
type Normalizer interface {
	Normalize(ctx context.Context, name string) string
}

// AliasNormalizer uses the static alias table of the symptom lexicon.
type AliasNormalizer struct{}

func (AliasNormalizer) Normalize(_ context.Context, name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := symptomextraction.Canonical(name); ok {
		return canonical
	}
	return name
}

type entityResolver interface {
	Resolve(ctx context.Context, text, entityType string) (*knowledgegraph.Resolution, error)
}

// GraphNormalizer resolves names against the knowledge graph's symptom
// entities and falls back to the alias table for anything it cannot resolve.
type GraphNormalizer struct {
	resolver entityResolver
	fallback Normalizer
}

func NewGraphNormalizer(resolver entityResolver) *GraphNormalizer {
	return &GraphNormalizer{resolver: resolver, fallback: AliasNormalizer{}}
}

func (n *GraphNormalizer) Normalize(ctx context.Context, name string) string {
	if n.resolver != nil {
		if res, err := n.resolver.Resolve(ctx, name, kbase.TypeSymptom); err == nil {
			return res.Entity.Name
		}
	}
	return n.fallback.Normalize(ctx, name)
}
