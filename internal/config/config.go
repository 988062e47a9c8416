package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbeddingProvider represents the type of embedding provider
type EmbeddingProvider string

const (
	ProviderOpenAI      EmbeddingProvider = "openai"
	ProviderLocal       EmbeddingProvider = "local"
	ProviderHuggingFace EmbeddingProvider = "huggingface"
)

// CacheBackend selects where the embedding cache is persisted.
type CacheBackend string

const (
	BackendFile   CacheBackend = "file"
	BackendSQLite CacheBackend = "sqlite"
)

// Invalidation selects how a persisted cache is checked against the running model and catalog.
type Invalidation string

const (
	// InvalidateVersion discards the persisted cache when the model or catalog hash changed.
	InvalidateVersion Invalidation = "version"
	// InvalidateNone keeps every persisted entry and only embeds missing slugs.
	InvalidateNone Invalidation = "none"
)

// Config holds all configuration for the card matcher.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	LogLevel  string          `yaml:"log_level"`
}

// EmbeddingConfig holds configuration for embedding providers
type EmbeddingConfig struct {
	Provider    EmbeddingProvider `yaml:"provider"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Local       LocalConfig       `yaml:"local"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Dimensions  int               `yaml:"dimensions"` // Auto-detected if 0
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// LocalConfig holds local embedding server configuration
type LocalConfig struct {
	ServerURL  string `yaml:"server_url"`
	ModelName  string `yaml:"model_name"`
	Timeout    int    `yaml:"timeout_seconds"`
	ServerType string `yaml:"server_type"` // "tei", "ollama", "custom"
}

// HuggingFaceConfig holds HuggingFace model configuration
type HuggingFaceConfig struct {
	ModelID   string `yaml:"model_id"`
	Token     string `yaml:"token"`
	MaxLength int    `yaml:"max_length"`
}

// CatalogConfig locates the reference catalog.
type CatalogConfig struct {
	Path          string        `yaml:"path"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// CacheConfig controls embedding cache persistence.
type CacheConfig struct {
	Backend      CacheBackend `yaml:"backend"`
	Path         string       `yaml:"path"`
	Invalidation Invalidation `yaml:"invalidation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MatcherConfig holds ranking settings.
type MatcherConfig struct {
	DefaultTopN int `yaml:"default_top_n"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: ProviderHuggingFace,
			OpenAI: OpenAIConfig{
				Model: "text-embedding-3-small",
			},
			Local: LocalConfig{
				ServerURL:  "http://localhost:8080",
				Timeout:    30,
				ServerType: "tei",
			},
			HuggingFace: HuggingFaceConfig{
				ModelID:   "sentence-transformers/paraphrase-MiniLM-L6-v2",
				MaxLength: 2048,
			},
			Dimensions: 0, // Auto-detect
		},
		Catalog: CatalogConfig{
			Path:          "data/merry_cards_data_dump.json",
			WatchDebounce: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend:      BackendFile,
			Path:         "data/merry_cards_embeddings_cache.json",
			Invalidation: InvalidateVersion,
		},
		Server: ServerConfig{
			Addr:           ":5000",
			RequestTimeout: 60 * time.Second,
		},
		Matcher: MatcherConfig{
			DefaultTopN: 5,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, then the optional YAML file at path,
// then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	// Load embedding provider type
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		switch strings.ToLower(provider) {
		case "openai":
			c.Embedding.Provider = ProviderOpenAI
		case "local":
			c.Embedding.Provider = ProviderLocal
		case "huggingface":
			c.Embedding.Provider = ProviderHuggingFace
		default:
			return fmt.Errorf("invalid embedding provider: %s (must be 'openai', 'local', or 'huggingface')", provider)
		}
	}

	// Load OpenAI configuration
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.Embedding.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OpenAI.Model = model
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.Embedding.OpenAI.BaseURL = baseURL
	}

	// Load local embedding configuration
	if serverURL := os.Getenv("LOCAL_EMBEDDING_URL"); serverURL != "" {
		c.Embedding.Local.ServerURL = serverURL
	}
	if modelName := os.Getenv("LOCAL_EMBEDDING_MODEL"); modelName != "" {
		c.Embedding.Local.ModelName = modelName
	}
	if serverType := os.Getenv("LOCAL_EMBEDDING_SERVER_TYPE"); serverType != "" {
		c.Embedding.Local.ServerType = strings.ToLower(serverType)
	}
	if timeoutStr := os.Getenv("LOCAL_EMBEDDING_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			c.Embedding.Local.Timeout = timeout
		}
	}

	// Load HuggingFace configuration
	if modelID := os.Getenv("HUGGINGFACE_MODEL_ID"); modelID != "" {
		c.Embedding.HuggingFace.ModelID = modelID
	}
	if token := os.Getenv("HUGGINGFACEHUB_API_TOKEN"); token != "" {
		c.Embedding.HuggingFace.Token = token
	} else if token := os.Getenv("HF_TOKEN"); token != "" {
		c.Embedding.HuggingFace.Token = token
	}
	if maxLengthStr := os.Getenv("HUGGINGFACE_MAX_LENGTH"); maxLengthStr != "" {
		if maxLength, err := strconv.Atoi(maxLengthStr); err == nil && maxLength > 0 {
			c.Embedding.HuggingFace.MaxLength = maxLength
		}
	}

	// Load embedding dimensions override
	if dimStr := os.Getenv("EMBEDDING_DIMENSIONS"); dimStr != "" {
		if dimensions, err := strconv.Atoi(dimStr); err == nil && dimensions > 0 {
			c.Embedding.Dimensions = dimensions
		}
	}

	if path := os.Getenv("CATALOG_PATH"); path != "" {
		c.Catalog.Path = path
	}
	if watchStr := os.Getenv("CATALOG_WATCH"); watchStr != "" {
		if watch, err := strconv.ParseBool(watchStr); err == nil {
			c.Catalog.Watch = watch
		}
	}
	if backend := os.Getenv("CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = CacheBackend(strings.ToLower(backend))
	}
	if path := os.Getenv("CACHE_PATH"); path != "" {
		c.Cache.Path = path
	}
	if inv := os.Getenv("CACHE_INVALIDATION"); inv != "" {
		c.Cache.Invalidation = Invalidation(strings.ToLower(inv))
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.OpenAI.APIKey == "" {
			return errors.New("OpenAI API key is required when using OpenAI provider")
		}
		if c.Embedding.OpenAI.Model == "" {
			return errors.New("OpenAI model is required")
		}
	case ProviderLocal:
		if c.Embedding.Local.ServerURL == "" {
			return errors.New("local embedding server URL is required when using local provider")
		}
		if c.Embedding.Local.Timeout <= 0 {
			return errors.New("local embedding timeout must be positive")
		}
		validServerTypes := []string{"tei", "ollama", "custom"}
		isValidType := false
		for _, validType := range validServerTypes {
			if c.Embedding.Local.ServerType == validType {
				isValidType = true
				break
			}
		}
		if !isValidType {
			return fmt.Errorf("invalid server type: %s (must be one of: %s)",
				c.Embedding.Local.ServerType, strings.Join(validServerTypes, ", "))
		}
	case ProviderHuggingFace:
		if c.Embedding.HuggingFace.ModelID == "" {
			return errors.New("HuggingFace model ID is required when using HuggingFace provider")
		}
		if c.Embedding.HuggingFace.MaxLength <= 0 {
			return errors.New("HuggingFace max length must be positive")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions < 0 {
		return errors.New("embedding dimensions must be non-negative")
	}

	if c.Catalog.Path == "" {
		return errors.New("catalog path is required")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown cache backend: %s (must be 'file' or 'sqlite')", c.Cache.Backend)
	}
	if c.Cache.Path == "" {
		return errors.New("cache path is required")
	}
	switch c.Cache.Invalidation {
	case InvalidateVersion, InvalidateNone:
	default:
		return fmt.Errorf("unknown cache invalidation: %s (must be 'version' or 'none')", c.Cache.Invalidation)
	}
	if c.Matcher.DefaultTopN <= 0 {
		return errors.New("matcher default_top_n must be positive")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server request_timeout must be non-negative")
	}
	return nil
}
