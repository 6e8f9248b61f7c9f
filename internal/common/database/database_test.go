package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"inquiry-core/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Redis
// ==========================

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_Purge(t *testing.T) {
	mr := miniredis.RunT(t)
	for _, key := range []string{"inquiry:kg:a", "inquiry:kg:b", "inquiry:kg:c", "inquiry:session:x"} {
		require.NoError(t, mr.Set(key, "1"))
	}

	rdb, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()))

	n, err := rdb.Purge(context.Background(), "inquiry:kg:")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"inquiry:session:x"}, mr.Keys())

	n, err = rdb.Purge(context.Background(), "inquiry:kg:")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ==========================
// PostgreSQL
// ==========================

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	c := &PostgresClient{DB: db}
	assert.NoError(t, c.Ping(context.Background()))

	mock.ExpectClose()
	assert.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Elasticsearch
// ==========================

func newFakeElastic(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return es
}

func TestNewElasticsearch_RequiresAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}

func TestElasticsearchClient_EnsureIndex(t *testing.T) {
	tests := []struct {
		name        string
		existStatus int
		wantCreated bool
		wantErr     bool
	}{
		{name: "index exists", existStatus: http.StatusOK},
		{name: "index missing", existStatus: http.StatusNotFound, wantCreated: true},
		{name: "cluster error", existStatus: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var creates int
			es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodHead:
					w.WriteHeader(tt.existStatus)
				case http.MethodPut:
					creates++
					_, _ = w.Write([]byte(`{"acknowledged":true}`))
				default:
					_, _ = w.Write([]byte(`{}`))
				}
			})

			created, err := es.EnsureIndex(context.Background(), "entities", `{"mappings":{}}`)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			if tt.wantCreated {
				assert.Equal(t, 1, creates)
			} else {
				assert.Zero(t, creates)
			}
		})
	}
}

func TestElasticsearchClient_Ping(t *testing.T) {
	es := newFakeElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.Error(t, es.Ping(context.Background()))
}
