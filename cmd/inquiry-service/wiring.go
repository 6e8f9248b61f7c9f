package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inquiry-core/internal/api"
	"inquiry-core/internal/common/cache"
	"inquiry-core/internal/common/config"
	"inquiry-core/internal/common/database"
	"inquiry-core/internal/common/logger"
	"inquiry-core/internal/common/observability"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
	"inquiry-core/internal/conversation/session"
	diagnosticreasoning "inquiry-core/internal/diagnosis/diagnostic-reasoning"
	healthrisk "inquiry-core/internal/diagnosis/health-risk"
	symptomextraction "inquiry-core/internal/extraction/symptom-extraction"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/pkg/kbase"
)

const (
	keyPrefix    = "inquiry:"
	redisLockTTL = 30 * time.Second
)

// backends are the optional external services. A nil client means the
// in-process fallback is used for that concern.
type backends struct {
	redis    *database.RedisClient
	postgres *database.PostgresClient
	elastic  *database.ElasticsearchClient
}

func connect(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*backends, error) {
	b := &backends{}

	// --- Redis: session store, caches and assessment history ---
	if cfg.Database.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			var err error
			b.redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return b.redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL: session archive ---
	if cfg.Session.ArchiveEnabled {
		err := retryWithBackoff(func() error {
			var err error
			b.postgres, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return b.postgres.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := database.Migrate(cfg.Database.Postgres); err != nil {
			b.Close()
			return nil, err
		}
		zapLog.Info("PostgreSQL connected and migrated")
	}

	// --- Elasticsearch: remote entity search ---
	if cfg.Knowledge.SearchIndex != "" {
		err := retryWithBackoff(func() error {
			var err error
			b.elastic, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return b.elastic.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			b.Close()
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Knowledge.SearchIndex))
	}

	return b, nil
}

// Ping checks every configured backend; used by the readiness probe.
func (b *backends) Ping(ctx context.Context) error {
	if b.redis != nil {
		if err := b.redis.Ping(ctx); err != nil {
			return err
		}
	}
	if b.postgres != nil {
		if err := b.postgres.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	if b.elastic != nil {
		if err := b.elastic.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// prepare readies the backends for the loaded knowledge base: cached graph
// and diagnosis results from an earlier document are dropped, and the
// entity search index is created and filled when it does not exist yet.
func prepare(ctx context.Context, cfg *config.Config, doc *kbase.Document, b *backends, zapLog *zap.Logger) error {
	if b.redis != nil {
		for _, prefix := range []string{keyPrefix + "kg:", keyPrefix + "dx:"} {
			n, err := b.redis.Purge(ctx, prefix)
			if err != nil {
				return err
			}
			if n > 0 {
				zapLog.Info("Purged cached results", zap.String("prefix", prefix), zap.Int("keys", n))
			}
		}
	}

	if b.elastic != nil {
		index := cfg.Knowledge.SearchIndex
		created, err := b.elastic.EnsureIndex(ctx, index, knowledgegraph.EntityIndexMapping)
		if err != nil {
			return err
		}
		if created {
			searcher := knowledgegraph.NewElasticSearcher(b.elastic.Client, index)
			if err := searcher.IndexEntities(ctx, doc.Entities); err != nil {
				return err
			}
			zapLog.Info("Entity search index created", zap.String("index", index), zap.Int("entities", len(doc.Entities)))
		}
	}
	return nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.postgres != nil {
		_ = b.postgres.Close()
	}
}

func buildService(cfg *config.Config, doc *kbase.Document, b *backends, obs *observability.Observability, log logger.Logger) (*session.Service, error) {
	graph, err := knowledgegraph.FromDocument(doc)
	if err != nil {
		return nil, err
	}

	kgCfg := knowledgeConfig(cfg)
	dxCfg := diagnosisConfig(cfg)

	var (
		kgCache cache.Cache
		dxCache cache.Cache
		history diagnosticreasoning.History
	)
	if b.redis != nil {
		kgCache = cache.NewRedisCache(b.redis.Client, "knowledge-graph", keyPrefix+"kg:", kgCfg.CacheTTL)
		dxCache = cache.NewRedisCache(b.redis.Client, "diagnosis", keyPrefix+"dx:", dxCfg.CacheTTL)
		history = diagnosticreasoning.NewRedisHistory(b.redis.Client, keyPrefix+"history:", dxCfg.HistoryLimit, dxCfg.HistoryTTL)
	} else {
		kgCache = cache.NewMemoryCache("knowledge-graph", kgCfg.CacheTTL)
		dxCache = cache.NewMemoryCache("diagnosis", dxCfg.CacheTTL)
		history = diagnosticreasoning.NewMemoryHistory(dxCfg.HistoryLimit)
	}

	var searcher knowledgegraph.Searcher
	if b.elastic != nil {
		searcher = knowledgegraph.NewElasticSearcher(b.elastic.Client, cfg.Knowledge.SearchIndex)
	}

	kg := knowledgegraph.NewHandler(kgCfg, graph, searcher, kgCache, log)
	dx := diagnosticreasoning.NewHandler(dxCfg, doc.Diseases, diagnosticreasoning.NewGraphNormalizer(kg.Resolver()), dxCache, history, log)

	riskRules, err := healthrisk.LoadRules(cfg.Diagnosis.RiskRulesPath)
	if err != nil {
		return nil, err
	}
	risk := healthrisk.NewAssessor(healthrisk.LoadConfig(), riskRules, kg, log)

	templates := flowcontroller.DefaultTemplates()
	if cfg.Flow.TemplatesPath != "" {
		templates, err = flowcontroller.LoadTemplates(cfg.Flow.TemplatesPath)
		if err != nil {
			return nil, err
		}
	}
	flowCfg, err := flowConfig(cfg)
	if err != nil {
		return nil, err
	}
	flow, err := flowcontroller.NewController(flowCfg, templates, log)
	if err != nil {
		return nil, err
	}

	ttl := config.GetDuration(cfg.Session.TTL)
	lockWait := config.GetDuration(cfg.Session.LockWait)
	var store session.Store
	if cfg.Session.Store == config.SessionStoreRedis {
		store = session.NewRedisStore(b.redis.Client, keyPrefix+"session:", ttl, redisLockTTL, lockWait)
	} else {
		store = session.NewMemoryStore(ttl, lockWait)
	}

	deps := session.Dependencies{
		Store:         store,
		Extractor:     symptomextraction.NewHandler(extractionConfig(cfg), log),
		Flow:          flow,
		Graph:         kg,
		Diagnosis:     dx,
		HealthRisk:    risk,
		Observability: obs,
	}
	if b.postgres != nil {
		deps.Archive = session.NewPostgresArchive(b.postgres.DB, log)
	}

	sessCfg := session.LoadConfig()
	sessCfg.TurnTimeout = config.GetDuration(cfg.Extraction.TurnTimeout)
	return session.NewService(sessCfg, deps, log)
}

func knowledgeConfig(cfg *config.Config) *knowledgegraph.Config {
	c := knowledgegraph.LoadConfig()
	c.MatchThreshold = cfg.Knowledge.MatchThreshold
	c.RemedyThreshold = cfg.Knowledge.RemedyThreshold
	c.SimilarityThreshold = cfg.Knowledge.SimilarityThreshold
	c.SearchTimeout = config.GetDuration(cfg.Knowledge.SearchTimeout)
	c.CacheTTL = config.GetDuration(cfg.Knowledge.CacheTTL)
	return c
}

func diagnosisConfig(cfg *config.Config) *diagnosticreasoning.Config {
	c := diagnosticreasoning.LoadConfig()
	c.MaxDifferentials = cfg.Diagnosis.MaxDifferentials
	c.MinProbability = cfg.Diagnosis.MinProbability
	c.PrimaryProbability = cfg.Diagnosis.PrimaryProbability
	c.BaselineRate = cfg.Diagnosis.BaselineRate
	c.AtypicalPenalty = cfg.Diagnosis.AtypicalPenalty
	c.HistoryLimit = cfg.Diagnosis.HistoryLimit
	c.CacheTTL = config.GetDuration(cfg.Diagnosis.CacheTTL)
	return c
}

func flowConfig(cfg *config.Config) (*flowcontroller.Config, error) {
	c := flowcontroller.LoadConfig()
	c.AdequacyThreshold = cfg.Flow.AdequacyThreshold
	c.EmergencySeverity = cfg.Flow.EmergencySeverity
	if len(cfg.Flow.EmergencyKeywords) > 0 {
		c.EmergencyKeywords = cfg.Flow.EmergencyKeywords
	}
	for name, n := range cfg.Flow.MaxQuestionsPerStage {
		stage, err := flowcontroller.ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("flow.max_questions_per_stage: %w", err)
		}
		c.MaxQuestionsPerStage[stage] = n
	}
	return c, nil
}

func extractionConfig(cfg *config.Config) *symptomextraction.Config {
	c := symptomextraction.LoadConfig()
	c.AnalyzerTimeout = config.GetDuration(cfg.Extraction.AnalyzerTimeout)
	c.MaxSymptoms = cfg.Extraction.MaxSymptoms
	return c
}

func apiConfig(cfg *config.Config) *api.Config {
	c := api.LoadConfig()
	c.RequestTimeout = config.GetDuration(cfg.Server.RequestTimeout)
	c.AllowedOrigins = cfg.Server.AllowedOrigins
	return c
}
