package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: inquiry-core
logging:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 0.6, cfg.Knowledge.MatchThreshold)
	assert.Equal(t, 0.7, cfg.Knowledge.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Diagnosis.MaxDifferentials)
	assert.Equal(t, 0.1, cfg.Diagnosis.MinProbability)
	assert.Equal(t, 0.7, cfg.Flow.AdequacyThreshold)
	assert.Equal(t, 200*time.Millisecond, GetDuration(cfg.Extraction.AnalyzerTimeout))
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("INQUIRY_TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
database:
  postgres:
    host: ${INQUIRY_TEST_PG_HOST}
    database: inquiry
session:
  archive_enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal")
	assert.Equal(t, "postgres://:@db.internal:5432/inquiry?sslmode=disable", cfg.Database.Postgres.GetURL())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "redis store without address",
			body:    "session:\n  store: redis\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "unknown store",
			body:    "session:\n  store: etcd\n",
			wantErr: "session.store",
		},
		{
			name:    "archive without postgres",
			body:    "session:\n  archive_enabled: true\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "search index without elasticsearch",
			body:    "knowledge:\n  search_index: tcm_entities\n",
			wantErr: "elasticsearch",
		},
		{
			name:    "threshold out of range",
			body:    "knowledge:\n  match_threshold: 1.5\n",
			wantErr: "knowledge.match_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
