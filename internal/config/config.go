// Package config loads and validates the orchestrator configuration from
// YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/orchardai/orchestrator/internal/models"
)

// Config is the full orchestrator configuration.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
}

// ServiceConfig contains the HTTP API settings.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	AdminPort       int           `mapstructure:"admin_port"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// TemporalConfig contains the workflow engine connection settings.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// LLMConfig points at the model gateway service.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KnowledgeConfig points at the graph search service.
type KnowledgeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebSearchConfig contains web search provider settings.
type WebSearchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains answer cache settings.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PostgresConfig contains run history store settings.
type PostgresConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// TracingConfig contains OTLP export settings.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// WorkflowConfig holds the per-run defaults; every field can be overridden
// per request. These are the hot-reloadable tuning knobs.
type WorkflowConfig struct {
	RetrievalLimit      int  `mapstructure:"retrieval_limit"`
	WebSearchLimit      int  `mapstructure:"web_search_limit"`
	Entities            bool `mapstructure:"entities"`
	Relationships       bool `mapstructure:"relationships"`
	Episodes            bool `mapstructure:"episodes"`
	Communities         bool `mapstructure:"communities"`
	GradeRelevance      bool `mapstructure:"grade_relevance"`
	CheckGroundedness   bool `mapstructure:"check_groundedness"`
	CheckUsefulness     bool `mapstructure:"check_usefulness"`
	MaxQueryRefinements int  `mapstructure:"max_query_refinements"`
	MaxRegenerations    int  `mapstructure:"max_regenerations"`
}

// Evidence returns the component toggles as an options value.
func (w WorkflowConfig) Evidence() models.EvidenceOptions {
	return models.EvidenceOptions{
		Entities:      w.Entities,
		Relationships: w.Relationships,
		Episodes:      w.Episodes,
		Communities:   w.Communities,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", 8080)
	v.SetDefault("service.admin_port", 8081)
	v.SetDefault("service.graceful_timeout", "15s")
	v.SetDefault("service.read_timeout", "30s")
	v.SetDefault("service.write_timeout", "120s")
	v.SetDefault("service.rate_limit_rps", 10.0)
	v.SetDefault("service.rate_limit_burst", 20)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "orchard-qa")

	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("knowledge.timeout", "30s")
	v.SetDefault("web_search.base_url", "https://api.tavily.com")
	v.SetDefault("web_search.timeout", "30s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)

	v.SetDefault("tracing.service_name", "orchard-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("workflow.retrieval_limit", 3)
	v.SetDefault("workflow.web_search_limit", 3)
	v.SetDefault("workflow.entities", true)
	v.SetDefault("workflow.relationships", true)
	v.SetDefault("workflow.episodes", false)
	v.SetDefault("workflow.communities", false)
	v.SetDefault("workflow.grade_relevance", false)
	v.SetDefault("workflow.check_groundedness", false)
	v.SetDefault("workflow.check_usefulness", false)
	v.SetDefault("workflow.max_query_refinements", 3)
	v.SetDefault("workflow.max_regenerations", 3)
}

// Load reads the config file at path (or $CONFIG_PATH, or
// config/orchestrator.yaml) and applies ORCHARD_* env overrides.
// A missing file is fine; defaults plus env apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/orchestrator.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORCHARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(underlying(err)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok || u.Unwrap() == nil {
			return err
		}
		err = u.Unwrap()
	}
}

// Validate fails fast on settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port %d out of range", c.Service.Port)
	}
	if c.Service.AdminPort <= 0 || c.Service.AdminPort > 65535 {
		return fmt.Errorf("service.admin_port %d out of range", c.Service.AdminPort)
	}
	if c.Service.RateLimitRPS <= 0 {
		return fmt.Errorf("service.rate_limit_rps must be positive")
	}
	if c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port is required")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue is required")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if err := c.Workflow.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the per-run defaults the same way the API checks
// request overrides.
func (w WorkflowConfig) Validate() error {
	if w.RetrievalLimit <= 0 {
		return fmt.Errorf("workflow.retrieval_limit must be positive")
	}
	if w.WebSearchLimit <= 0 {
		return fmt.Errorf("workflow.web_search_limit must be positive")
	}
	if w.MaxQueryRefinements < 0 {
		return fmt.Errorf("workflow.max_query_refinements must not be negative")
	}
	if w.MaxRegenerations < 0 {
		return fmt.Errorf("workflow.max_regenerations must not be negative")
	}
	if !w.Evidence().Any() {
		return fmt.Errorf("at least one evidence component must be enabled")
	}
	return nil
}
