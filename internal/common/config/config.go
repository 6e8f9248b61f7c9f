package config

import "fmt"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Diagnosis  DiagnosisConfig  `mapstructure:"diagnosis"`
	Flow       FlowConfig       `mapstructure:"flow"`
	Session    SessionConfig    `mapstructure:"session"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds
	// AllowedOrigins restricts websocket stream upgrades; empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// GetURL returns the postgres:// form expected by the migration driver.
func (p PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address     string `mapstructure:"address"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	PoolSize    int    `mapstructure:"pool_size"`
	ReadTimeout int    `mapstructure:"read_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type KnowledgeConfig struct {
	Path                string  `mapstructure:"path"`
	URL                 string  `mapstructure:"url"`
	FetchTimeout        int     `mapstructure:"fetch_timeout"` // milliseconds
	SearchIndex         string  `mapstructure:"search_index"`
	SearchTimeout       int     `mapstructure:"search_timeout"` // milliseconds
	MatchThreshold      float64 `mapstructure:"match_threshold"`
	RemedyThreshold     float64 `mapstructure:"remedy_threshold"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // milliseconds
}

type ExtractionConfig struct {
	AnalyzerTimeout int `mapstructure:"analyzer_timeout"` // milliseconds
	TurnTimeout     int `mapstructure:"turn_timeout"`     // milliseconds
	MaxSymptoms     int `mapstructure:"max_symptoms"`
}

type DiagnosisConfig struct {
	MaxDifferentials   int     `mapstructure:"max_differentials"`
	MinProbability     float64 `mapstructure:"min_probability"`
	PrimaryProbability float64 `mapstructure:"primary_probability"`
	BaselineRate       float64 `mapstructure:"baseline_rate"`
	AtypicalPenalty    float64 `mapstructure:"atypical_penalty"`
	HistoryLimit       int     `mapstructure:"history_limit"`
	CacheTTL           int     `mapstructure:"cache_ttl"` // milliseconds
	RiskRulesPath      string  `mapstructure:"risk_rules_path"`
}

type FlowConfig struct {
	AdequacyThreshold    float64        `mapstructure:"adequacy_threshold"`
	MaxQuestionsPerStage map[string]int `mapstructure:"max_questions_per_stage"`
	TemplatesPath        string         `mapstructure:"templates_path"`
	EmergencyKeywords    []string       `mapstructure:"emergency_keywords"`
	EmergencySeverity    float64        `mapstructure:"emergency_severity"`
}

type SessionConfig struct {
	Store          string `mapstructure:"store"` // memory | redis
	TTL            int    `mapstructure:"ttl"`   // milliseconds
	LockWait       int    `mapstructure:"lock_wait"`
	ArchiveEnabled bool   `mapstructure:"archive_enabled"`
}
