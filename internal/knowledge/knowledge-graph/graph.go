package knowledgegraph

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"inquiry-core/internal/common/errors"
	"inquiry-core/pkg/kbase"

	"github.com/google/uuid"
)

// Graph is the typed entity/relation store. It is filled once at startup and
// read concurrently afterwards; UpdateEntity replaces whole entities.
type Graph struct {
	mu sync.RWMutex

	entities map[string]Entity
	order    map[string]int
	byType   map[string][]string
	names    map[string]string

	relations []Relation
	byKind    map[string][]int
	outgoing  map[string][]int
	incoming  map[string][]int
}

func NewGraph() *Graph {
	return &Graph{
		entities: make(map[string]Entity),
		order:    make(map[string]int),
		byType:   make(map[string][]string),
		names:    make(map[string]string),
		byKind:   make(map[string][]int),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

// FromDocument builds a graph from a validated knowledge base document.
func FromDocument(doc *kbase.Document) (*Graph, error) {
	g := NewGraph()
	for _, e := range doc.Entities {
		if err := g.AddEntity(e); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Relations {
		if err := g.AddRelation(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func knownType(t string) bool {
	return slices.Contains(kbase.EntityTypes, t)
}

func knownKind(k string) bool {
	return slices.Contains(kbase.RelationKinds, k)
}

func (g *Graph) AddEntity(e Entity) error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Name) == "" {
		return errors.NewValidationError("entity id and name are required")
	}
	if !knownType(e.Type) {
		return errors.NewValidationError(fmt.Sprintf("entity %s: unknown type %q", e.ID, e.Type))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.entities[e.ID]; exists {
		return errors.NewValidationError(fmt.Sprintf("entity %s already exists", e.ID))
	}
	g.entities[e.ID] = e
	g.order[e.ID] = len(g.order)
	g.byType[e.Type] = append(g.byType[e.Type], e.ID)
	g.indexNames(e)
	return nil
}

// indexNames registers the name and aliases of e. The first entity to claim a
// name keeps it.
func (g *Graph) indexNames(e Entity) {
	for _, n := range append([]string{e.Name}, e.Aliases...) {
		key := e.Type + "|" + normalize(n)
		if _, taken := g.names[key]; !taken {
			g.names[key] = e.ID
		}
	}
}

// UpdateEntity replaces the entity with the same id. The type cannot change.
func (g *Graph) UpdateEntity(e Entity) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.entities[e.ID]
	if !ok {
		return errors.NewEntityNotFoundError(e.ID)
	}
	if current.Type != e.Type {
		return errors.NewValidationError(fmt.Sprintf("entity %s: type change %s -> %s", e.ID, current.Type, e.Type))
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.NewValidationError(fmt.Sprintf("entity %s: name is required", e.ID))
	}

	g.entities[e.ID] = e
	g.names = make(map[string]string, len(g.names))
	for _, t := range kbase.EntityTypes {
		for _, id := range g.byType[t] {
			g.indexNames(g.entities[id])
		}
	}
	return nil
}

// AddRelation validates and indexes r. An empty id is assigned.
func (g *Graph) AddRelation(r Relation) error {
	if !knownKind(r.Kind) {
		return errors.NewValidationError(fmt.Sprintf("relation %s: unknown kind %q", r.ID, r.Kind))
	}
	if r.Weight < 0 || r.Weight > 1 {
		return errors.NewValidationError(fmt.Sprintf("relation %s: weight %v outside [0,1]", r.ID, r.Weight))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entities[r.Source]; !ok {
		return errors.NewEntityNotFoundError(r.Source)
	}
	if _, ok := g.entities[r.Target]; !ok {
		return errors.NewEntityNotFoundError(r.Target)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	idx := len(g.relations)
	g.relations = append(g.relations, r)
	g.byKind[r.Kind] = append(g.byKind[r.Kind], idx)
	g.outgoing[r.Source] = append(g.outgoing[r.Source], idx)
	g.incoming[r.Target] = append(g.incoming[r.Target], idx)
	return nil
}

func (g *Graph) Entity(id string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[id]
	return e, ok
}

// EntitiesByType returns the entities of one type in insertion order.
func (g *Graph) EntitiesByType(entityType string) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byType[entityType]
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.entities[id])
	}
	return out
}

// Outgoing returns relations leaving id. An empty kind matches every kind.
func (g *Graph) Outgoing(id, kind string) []Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.outgoing[id], kind)
}

func (g *Graph) Incoming(id, kind string) []Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.incoming[id], kind)
}

func (g *Graph) RelationsByKind(kind string) []Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.byKind[kind], "")
}

func (g *Graph) collect(indexes []int, kind string) []Relation {
	out := make([]Relation, 0, len(indexes))
	for _, i := range indexes {
		if kind == "" || g.relations[i].Kind == kind {
			out = append(out, g.relations[i])
		}
	}
	return out
}

// QueryRelations walks outgoing relations of the given kinds breadth first up
// to depth hops from id. Each relation is reported once.
func (g *Graph) QueryRelations(id string, kinds []string, depth int) []Relation {
	if depth <= 0 {
		depth = 1
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	seenRel := make(map[int]struct{})
	visited := map[string]struct{}{id: {}}
	frontier := []string{id}
	var out []Relation

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			for _, i := range g.outgoing[node] {
				r := g.relations[i]
				if len(kinds) > 0 && !slices.Contains(kinds, r.Kind) {
					continue
				}
				if _, seen := seenRel[i]; seen {
					continue
				}
				seenRel[i] = struct{}{}
				out = append(out, r)
				if _, ok := visited[r.Target]; !ok {
					visited[r.Target] = struct{}{}
					next = append(next, r.Target)
				}
			}
		}
		frontier = next
	}
	return out
}

func (g *Graph) Stats() kbase.Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := kbase.Stats{
		Entities:        len(g.entities),
		Relations:       len(g.relations),
		EntitiesByType:  make(map[string]int, len(g.byType)),
		RelationsByKind: make(map[string]int, len(g.byKind)),
	}
	for t, ids := range g.byType {
		s.EntitiesByType[t] = len(ids)
	}
	for k, idx := range g.byKind {
		s.RelationsByKind[k] = len(idx)
	}
	return s
}

// Ranks returns the insertion position of each id, the final tie-break in
// every ranking. Unknown ids sort after every known entity.
func (g *Graph) Ranks(ids ...string) map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		out[id] = g.insertionOrder(id)
	}
	return out
}

// insertionOrder requires g.mu to be held.
func (g *Graph) insertionOrder(id string) int {
	if i, ok := g.order[id]; ok {
		return i
	}
	return len(g.order)
}
