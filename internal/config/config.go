package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for ragchat
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Proxy     ProxyConfig     `mapstructure:"proxy" yaml:"proxy"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Ingest    IngestConfig    `mapstructure:"ingest" yaml:"ingest"`
	Query     QueryConfig     `mapstructure:"query" yaml:"query"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds the middleware listen address
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// BackendConfig describes the model server the proxy forwards to
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ProxyConfig holds proxy behaviour switches
type ProxyConfig struct {
	// MaskBackendErrors answers 200 with the error text in message.content
	// when the backend fails. Existing frontends only parse 200 bodies.
	MaskBackendErrors bool     `mapstructure:"mask_backend_errors" yaml:"mask_backend_errors"`
	APIKey            string   `mapstructure:"api_key" yaml:"api_key"`
	AllowOrigins      []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// StoreConfig holds vector store location
type StoreConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"` // "ollama" or "hash"
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Model     string        `mapstructure:"model" yaml:"model"`
	Dimension int           `mapstructure:"dimension" yaml:"dimension"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMConfig configures the query engine's model client, which talks to the middleware
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// IngestConfig configures directory loading
type IngestConfig struct {
	DataDir  string   `mapstructure:"data_dir" yaml:"data_dir"`
	Includes []string `mapstructure:"includes" yaml:"includes"`
	Excludes []string `mapstructure:"excludes" yaml:"excludes"`

	// AtomicUpsert writes through the store's insert-or-replace primitive
	// instead of a separate add or update.
	AtomicUpsert bool `mapstructure:"atomic_upsert" yaml:"atomic_upsert"`
}

// QueryConfig configures retrieval and synthesis
type QueryConfig struct {
	TopK              int    `mapstructure:"top_k" yaml:"top_k"`
	ResponseMode      string `mapstructure:"response_mode" yaml:"response_mode"`
	SummaryChunkChars int    `mapstructure:"summary_chunk_chars" yaml:"summary_chunk_chars"`

	// Streaming must stay false. Answers are synthesized in full before they are shown.
	Streaming bool `mapstructure:"streaming" yaml:"streaming"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" or "console"

	// File receives log output instead of stderr when set. The chat UI
	// always logs to a file.
	File string `mapstructure:"file" yaml:"file"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("RAGCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("backend.base_url", "RAGCHAT_BACKEND_BASE_URL", "BACKEND_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind BACKEND_URL: %w", err)
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.LLM.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/")
	cfg.Embedding.BaseURL = strings.TrimRight(cfg.Embedding.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8001)

	v.SetDefault("backend.base_url", "http://backend:11434")
	v.SetDefault("backend.model", "tinyllama")
	v.SetDefault("backend.timeout", "300s")

	v.SetDefault("proxy.mask_backend_errors", true)
	v.SetDefault("proxy.api_key", "")
	v.SetDefault("proxy.allow_origins", []string{"*"})

	v.SetDefault("store.path", "./chroma_db/ragchat.db")
	v.SetDefault("store.collection", "genai")

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.base_url", "http://backend:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.timeout", "120s")

	v.SetDefault("llm.base_url", "http://middleware:8001")
	v.SetDefault("llm.model", "mistral")
	v.SetDefault("llm.api_key", "not-needed")
	v.SetDefault("llm.request_timeout", "300s")

	v.SetDefault("ingest.data_dir", "data")
	v.SetDefault("ingest.includes", []string{"**/*"})
	v.SetDefault("ingest.excludes", []string{"**/.*", "**/.*/**"})
	v.SetDefault("ingest.atomic_upsert", false)

	v.SetDefault("query.top_k", 2)
	v.SetDefault("query.response_mode", "tree_summarize")
	v.SetDefault("query.streaming", false)
	v.SetDefault("query.summary_chunk_chars", 4000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	switch c.Embedding.Provider {
	case "ollama", "hash":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Query.ResponseMode != "tree_summarize" && c.Query.ResponseMode != "compact" {
		return fmt.Errorf("unsupported query.response_mode: %q", c.Query.ResponseMode)
	}
	if c.Query.Streaming {
		return fmt.Errorf("query.streaming is not supported")
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive")
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
