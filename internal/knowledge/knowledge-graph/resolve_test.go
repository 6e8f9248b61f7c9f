package knowledgegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inquiry-core/internal/common/errors"
	"inquiry-core/internal/common/logger"
	"inquiry-core/pkg/kbase"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	ids   []string
	err   error
	delay time.Duration
	calls int
}

func (s *stubSearcher) Search(ctx context.Context, _, _ string) ([]string, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.ids, s.err
}

// ==========================
// Resolver
// ==========================

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(defaultGraph(t), nil, nil, logger.NewTestLogger(t))

	tests := []struct {
		name       string
		text       string
		entityType string
		wantID     string
		wantMethod string
		wantSim    float64
	}{
		{"exact name", "心血虚证", kbase.TypeSyndrome, "syn_heart_blood_deficiency", MatchExact, 1},
		{"exact alias", "疲劳", kbase.TypeSymptom, "sym_fatigue", MatchExact, 1},
		{"alias with padding", "  桂圆 ", kbase.TypeHerb, "herb_long_yan_rou", MatchExact, 1},
		{"any type", "四君子汤", "", "for_si_jun_zi", MatchExact, 1},
		{"fuzzy through alias", "心血虚症", kbase.TypeSyndrome, "syn_heart_blood_deficiency", MatchFuzzy, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.text, tt.entityType)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, res.Entity.ID)
			assert.Equal(t, tt.wantMethod, res.Method)
			assert.Equal(t, tt.wantSim, res.Similarity)
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	r := NewResolver(defaultGraph(t), nil, nil, logger.NewTestLogger(t))

	_, err := r.Resolve(context.Background(), "  ", kbase.TypeSymptom)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	_, err = r.Resolve(context.Background(), "量子纠缠", kbase.TypeSymptom)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEntityNotFound))

	// Right name, wrong type.
	_, err = r.Resolve(context.Background(), "人参", kbase.TypeSymptom)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEntityNotFound))
}

func TestResolver_FuzzyTieGoesToFirstRegistered(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEntity(Entity{ID: "a", Name: "甲乙", Type: kbase.TypeHerb}))
	require.NoError(t, g.AddEntity(Entity{ID: "b", Name: "甲丙", Type: kbase.TypeHerb}))

	config := LoadConfig()
	config.SimilarityThreshold = 0.3
	r := NewResolver(g, config, nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), "甲丁", kbase.TypeHerb)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Entity.ID)
	assert.Equal(t, 0.333, res.Similarity)
}

func TestResolver_SearchFallback(t *testing.T) {
	g := defaultGraph(t)

	t.Run("first hit of the right type", func(t *testing.T) {
		s := &stubSearcher{ids: []string{"missing", "herb_gui_zhi", "syn_wind_cold"}}
		r := NewResolver(g, nil, s, logger.NewTestLogger(t))

		res, err := r.Resolve(context.Background(), "受凉了", kbase.TypeSyndrome)
		require.NoError(t, err)
		assert.Equal(t, "syn_wind_cold", res.Entity.ID)
		assert.Equal(t, MatchSearch, res.Method)
		assert.Equal(t, 1, s.calls)
	})

	t.Run("not consulted when matched locally", func(t *testing.T) {
		s := &stubSearcher{ids: []string{"syn_wind_cold"}}
		r := NewResolver(g, nil, s, logger.NewTestLogger(t))

		_, err := r.Resolve(context.Background(), "头痛", kbase.TypeSymptom)
		require.NoError(t, err)
		assert.Zero(t, s.calls)
	})

	t.Run("search error is not fatal", func(t *testing.T) {
		s := &stubSearcher{err: fmt.Errorf("connection refused")}
		r := NewResolver(g, nil, s, logger.NewTestLogger(t))

		_, err := r.Resolve(context.Background(), "受凉了", kbase.TypeSyndrome)
		assert.True(t, errors.HasCode(err, errors.ErrCodeEntityNotFound))
	})

	t.Run("search is bounded by the timeout", func(t *testing.T) {
		config := LoadConfig()
		config.SearchTimeout = 20 * time.Millisecond
		s := &stubSearcher{ids: []string{"syn_wind_cold"}, delay: time.Second}
		r := NewResolver(g, config, s, logger.NewTestLogger(t))

		start := time.Now()
		_, err := r.Resolve(context.Background(), "受凉了", kbase.TypeSyndrome)
		assert.True(t, errors.HasCode(err, errors.ErrCodeEntityNotFound))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

// ==========================
// Elasticsearch searcher
// ==========================

func newElasticServer(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticSearcher_Search(t *testing.T) {
	var body map[string]interface{}
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/kb-entities/_search"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		fmt.Fprint(w, `{"hits":{"hits":[{"_id":"doc-1","_source":{"id":"syn_wind_cold"}},{"_id":"herb_gui_zhi","_source":{}}]}}`)
	})

	s := NewElasticSearcher(client, "kb-entities")
	ids, err := s.Search(context.Background(), "受凉", kbase.TypeSyndrome)
	require.NoError(t, err)
	assert.Equal(t, []string{"syn_wind_cold", "herb_gui_zhi"}, ids)

	query := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Contains(t, query, "filter")
	assert.EqualValues(t, 5, body["size"])
}

func TestElasticSearcher_ErrorStatus(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"unavailable"}`)
	})

	_, err := NewElasticSearcher(client, "kb-entities").Search(context.Background(), "受凉", "")
	assert.Error(t, err)
}

func TestElasticSearcher_IndexEntities(t *testing.T) {
	var indexed []string
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		indexed = append(indexed, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)
	})

	g := defaultGraph(t)
	s := NewElasticSearcher(client, "kb-entities")
	require.NoError(t, s.IndexEntities(context.Background(), g.EntitiesByType(kbase.TypeSyndrome)))
	assert.Len(t, indexed, 10)
	assert.Equal(t, "/kb-entities/_doc/syn_qi_deficiency", indexed[0])
}

func TestResolver_WithElasticSearcher(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"hits":{"hits":[{"_id":"syn_wind_cold","_source":{"id":"syn_wind_cold"}}]}}`)
	})

	r := NewResolver(defaultGraph(t), nil, NewElasticSearcher(client, "kb-entities"), logger.NewTestLogger(t))
	res, err := r.Resolve(context.Background(), "受凉了", kbase.TypeSyndrome)
	require.NoError(t, err)
	assert.Equal(t, "风寒证", res.Entity.Name)
	assert.Equal(t, MatchSearch, res.Method)
}
