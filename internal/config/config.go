package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DatabaseURL enables the Postgres audit store and the semantic
	// grounding path. Without it the in-memory audit ring is used.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Web search collaborator. Missing credentials degrade to an empty
	// result list, never a hard failure.
	SearchEndpoint string `envconfig:"SEARCH_ENDPOINT"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"sishelper-exports"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// KnowledgeFile is the JSON file the knowledge store loads at startup.
	KnowledgeFile string `envconfig:"KNOWLEDGE_FILE"`

	// Retrieval tuning.
	MaxSources           int     `envconfig:"MAX_SOURCES" default:"5"`
	MinRelevance         float64 `envconfig:"MIN_RELEVANCE" default:"0.3"`
	MinSourceReliability float64 `envconfig:"MIN_SOURCE_RELIABILITY" default:"0.6"`
	MaxSourceAgeDays     int     `envconfig:"MAX_SOURCE_AGE_DAYS" default:"730"`
	CacheCapacity        int     `envconfig:"CACHE_CAPACITY" default:"256"`
	CacheTTLSeconds      int     `envconfig:"CACHE_TTL_SECONDS" default:"300"`

	// Prompt assembly.
	MaxContextLength int `envconfig:"MAX_CONTEXT_LENGTH" default:"16000"`

	// Verification.
	CriticalConfidenceThreshold float64 `envconfig:"CRITICAL_CONFIDENCE_THRESHOLD" default:"0.8"`

	// Consensus mode. Disabled when CandidateCount <= 1.
	ConsensusCandidates int `envconfig:"CONSENSUS_CANDIDATES" default:"1"`

	// Model gateway call timeout in seconds.
	ModelTimeoutSeconds int `envconfig:"MODEL_TIMEOUT_SECONDS" default:"60"`

	// Audit retention: maximum entries kept by the in-memory ring.
	AuditRingSize int `envconfig:"AUDIT_RING_SIZE" default:"10000"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SISHELPER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasWebSearch() bool {
	return c.SearchEndpoint != "" && c.SearchAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) ConsensusEnabled() bool {
	return c.ConsensusCandidates > 1
}
