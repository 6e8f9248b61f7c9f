package knowledgegraph

import (
	"context"
	"math"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/pkg/kbase"
)

// Searcher looks up entity ids for free text in a remote index. Results are
// ordered by relevance.
type Searcher interface {
	Search(ctx context.Context, text, entityType string) ([]string, error)
}

// Resolver maps free text onto graph entities: exact name or alias, then
// rune-set similarity, then the optional remote searcher.
type Resolver struct {
	graph    *Graph
	config   *Config
	searcher Searcher
	logger   logger.Logger
}

func NewResolver(graph *Graph, config *Config, searcher Searcher, log logger.Logger) *Resolver {
	if config == nil {
		config = LoadConfig()
	}
	return &Resolver{
		graph:    graph,
		config:   config,
		searcher: searcher,
		logger:   log.WithFields(map[string]interface{}{"component": "entity-resolver"}),
	}
}

// Resolve returns the entity best matching text. An empty entityType searches
// every type. Similarity ties go to the entity registered first.
func (r *Resolver) Resolve(ctx context.Context, text, entityType string) (*Resolution, error) {
	key := normalize(text)
	if key == "" {
		return nil, errors.NewValidationError("empty entity text")
	}

	if e, ok := r.exact(key, entityType); ok {
		return &Resolution{Entity: e, Method: MatchExact, Similarity: 1}, nil
	}
	if res, ok := r.fuzzy(key, entityType); ok {
		return res, nil
	}
	if res, ok := r.search(ctx, text, entityType); ok {
		return res, nil
	}
	return nil, errors.NewEntityNotFoundError(text)
}

func (r *Resolver) exact(key, entityType string) (Entity, bool) {
	g := r.graph
	g.mu.RLock()
	defer g.mu.RUnlock()

	types := []string{entityType}
	if entityType == "" {
		types = kbase.EntityTypes
	}
	for _, t := range types {
		if id, ok := g.names[t+"|"+key]; ok {
			return g.entities[id], true
		}
	}
	return Entity{}, false
}

func (r *Resolver) fuzzy(key, entityType string) (*Resolution, bool) {
	g := r.graph
	g.mu.RLock()
	defer g.mu.RUnlock()

	var (
		best      Entity
		bestScore float64
		bestOrder = math.MaxInt
	)
	for _, t := range kbase.EntityTypes {
		if entityType != "" && t != entityType {
			continue
		}
		for _, id := range g.byType[t] {
			e := g.entities[id]
			score := jaccard(key, normalize(e.Name))
			for _, alias := range e.Aliases {
				score = math.Max(score, jaccard(key, normalize(alias)))
			}
			order := g.insertionOrder(id)
			if score > bestScore || (score == bestScore && score > 0 && order < bestOrder) {
				best, bestScore, bestOrder = e, score, order
			}
		}
	}
	if bestScore < r.config.SimilarityThreshold || bestScore == 0 {
		return nil, false
	}
	return &Resolution{Entity: best, Method: MatchFuzzy, Similarity: math.Round(bestScore*1000) / 1000}, true
}

func (r *Resolver) search(ctx context.Context, text, entityType string) (*Resolution, bool) {
	if r.searcher == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.SearchTimeout)
	defer cancel()

	ids, err := r.searcher.Search(ctx, text, entityType)
	if err != nil {
		r.logger.Warn("remote entity search failed", map[string]interface{}{
			"text":  text,
			"error": err.Error(),
		})
		return nil, false
	}
	for _, id := range ids {
		e, ok := r.graph.Entity(id)
		if !ok || (entityType != "" && e.Type != entityType) {
			continue
		}
		return &Resolution{Entity: e, Method: MatchSearch}, true
	}
	return nil, false
}

// jaccard is the similarity of the rune sets of a and b.
func jaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	set := make(map[rune]uint8)
	for _, r := range a {
		set[r] |= 1
	}
	for _, r := range b {
		set[r] |= 2
	}
	var inter, union int
	for _, v := range set {
		union++
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(union)
}
