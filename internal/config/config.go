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

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	SearchAPIKey  string `envconfig:"SEARCH_API_KEY"`
	SearchBaseURL string `envconfig:"SEARCH_BASE_URL" default:"https://api.tavily.com"`

	TraceEndpoint string `envconfig:"TRACE_ENDPOINT"`
	TraceAPIKey   string `envconfig:"TRACE_API_KEY"`
	TraceProject  string `envconfig:"TRACE_PROJECT" default:"deskpilot"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"deskpilot-research"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Identity recorded as assignee while a conversation is AI-handled
	AIAssigneeID string `envconfig:"AI_ASSIGNEE_ID" default:"ai-assistant"`

	// Similarity ranking strategy: "blend" (default) or "embedding"
	RerankStrategy string `envconfig:"RERANK_STRATEGY" default:"blend"`

	// Bootstrap: create initial organization and API key on startup
	InitOrgName string `envconfig:"INIT_ORG_NAME"`
	InitAPIKey  string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DESKPILOT", &cfg); err != nil {
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

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSearch() bool {
	return c.SearchAPIKey != ""
}

func (c *Config) HasTracing() bool {
	return c.TraceEndpoint != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
