package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"inquiry-core/internal/common/config"
	"inquiry-core/internal/common/database"
	"inquiry-core/internal/common/logger"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	"inquiry-core/internal/conversation/session"
	"inquiry-core/pkg/kbase"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadTestConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

func TestFlowConfig(t *testing.T) {
	cfg := loadTestConfig(t, `
flow:
  adequacy_threshold: 0.8
  emergency_keywords: [胸痛]
  max_questions_per_stage:
    system_review: 4
`)

	fc, err := flowConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.8, fc.AdequacyThreshold)
	assert.Equal(t, []string{"胸痛"}, fc.EmergencyKeywords)
	assert.Equal(t, 4, fc.MaxQuestionsPerStage[flowcontroller.StageSystemReview])
	assert.Equal(t, 5, fc.MaxQuestionsPerStage[flowcontroller.StageChiefComplaint], "unlisted stages keep their default")

	cfg.Flow.MaxQuestionsPerStage = map[string]int{"triage": 3}
	_, err = flowConfig(cfg)
	assert.Error(t, err)
}

func TestFlowConfig_ShippedKeywordsMatchDefaults(t *testing.T) {
	cfg, err := config.LoadFromFile("../../configs/config.yaml")
	require.NoError(t, err)

	fc, err := flowConfig(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, flowcontroller.LoadConfig().EmergencyKeywords, fc.EmergencyKeywords)
	assert.Contains(t, fc.EmergencyKeywords, "心悸")
}

func TestBuildService_InProcessBackends(t *testing.T) {
	cfg := loadTestConfig(t, `
app:
  name: inquiry-core
`)

	svc, err := buildService(cfg, kbase.Default(), &backends{}, nil, logger.NewTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	started, err := svc.StartSession(ctx, &session.StartRequest{PatientID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, flowcontroller.StageChiefComplaint, started.Stage)
	assert.NotEmpty(t, started.Questions)

	summary, err := svc.EndSession(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "p-1", summary.PatientID)
}

func TestBuildService_TemplatesFile(t *testing.T) {
	cfg := loadTestConfig(t, `
flow:
  templates_path: ../../configs/questions.yaml
`)
	_, err := buildService(cfg, kbase.Default(), &backends{}, nil, logger.NewNoOpLogger())
	require.NoError(t, err)

	cfg.Flow.TemplatesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = buildService(cfg, kbase.Default(), &backends{}, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestBuildService_RiskRulesFile(t *testing.T) {
	cfg := loadTestConfig(t, `
diagnosis:
  risk_rules_path: ../../configs/risk_rules.yaml
`)
	_, err := buildService(cfg, kbase.Default(), &backends{}, nil, logger.NewNoOpLogger())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("combinations: []\n"), 0o600))
	cfg.Diagnosis.RiskRulesPath = path
	_, err = buildService(cfg, kbase.Default(), &backends{}, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestBackends_PingWithoutClients(t *testing.T) {
	b := &backends{}
	assert.NoError(t, b.Ping(context.Background()))
	b.Close()
}

func TestPrepare_PurgesCachedResults(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(keyPrefix+"kg:resolve:头痛", "1"))
	require.NoError(t, mr.Set(keyPrefix+"dx:abc", "1"))
	require.NoError(t, mr.Set(keyPrefix+"session:s-1", "1"))

	b := &backends{redis: &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}}
	defer b.Close()

	cfg := loadTestConfig(t, "app:\n  name: inquiry-test\n")
	require.NoError(t, prepare(context.Background(), cfg, kbase.Default(), b, zap.NewNop()))

	assert.False(t, mr.Exists(keyPrefix+"kg:resolve:头痛"))
	assert.False(t, mr.Exists(keyPrefix+"dx:abc"))
	assert.True(t, mr.Exists(keyPrefix+"session:s-1"), "sessions survive a restart")

	assert.NoError(t, prepare(context.Background(), cfg, kbase.Default(), &backends{}, zap.NewNop()))
}
