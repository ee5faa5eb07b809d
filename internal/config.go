package internal

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendBolt   = "bolt"
	BackendQdrant = "qdrant"

	EmbedderOllama = "ollama"
	EmbedderHash   = "hash"

	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

var providers = []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter}

type IndexConfig struct {
	Backend string       `yaml:"backend"`
	Path    string       `yaml:"path,omitempty"` // defaults to <scope>/index.db
	Qdrant  QdrantConfig `yaml:"qdrant,omitempty"`
}

type EmbeddingsConfig struct {
	Backend   string `yaml:"backend"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"` // 0 adopts the model's size
	CacheSize int    `yaml:"cache_size"`
}

type GenerationConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

type GuardrailConfig struct {
	ForbiddenTerms []string `yaml:"forbidden_terms,omitempty"`
}

type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	Workers      int `yaml:"workers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Index      IndexConfig      `yaml:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Guardrail  GuardrailConfig  `yaml:"guardrail,omitempty"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Server     ServerConfig     `yaml:"server"`
}

func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Backend: BackendBolt,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "coursebot",
			},
		},
		Embeddings: EmbeddingsConfig{
			Backend:   EmbedderOllama,
			Model:     "nomic-embed-text",
			CacheSize: 1024,
		},
		Generation: GenerationConfig{
			Provider:    ProviderOllama,
			Model:       "llama3.2",
			Timeout:     DefaultGenerationTimeout,
			Retries:     maxGenerationRetries,
			Temperature: 0.2,
			MaxTokens:   512,
		},
		Retrieval: RetrievalConfig{
			TopK:            DefaultTopK,
			MaxContextChars: 6000,
		},
		Ingest: IngestConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			Workers:      4,
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
	}
}

// LoadConfig reads the scope's config over the defaults. A missing file
// yields the defaults.
func LoadConfig(scope Scope) (*Config, error) {
	return LoadConfigFile(scope.ConfigPath())
}

func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func SaveConfig(scope Scope, cfg *Config) error {
	path := scope.ConfigPath()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ApplyEnv overrides endpoints and credentials from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if host := getenv("OLLAMA_HOST"); host != "" {
		host = normalizeOllamaHost(host)
		if c.Embeddings.Backend == EmbedderOllama {
			c.Embeddings.BaseURL = host
		}
		if c.Generation.Provider == ProviderOllama {
			c.Generation.BaseURL = host
		}
	}

	if key := getenv("COURSEBOT_API_KEY"); key != "" {
		c.Generation.APIKey = key
	}
	if c.Generation.APIKey == "" {
		switch c.Generation.Provider {
		case ProviderOpenAI:
			c.Generation.APIKey = getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			c.Generation.APIKey = getenv("ANTHROPIC_API_KEY")
		case ProviderOpenRouter:
			c.Generation.APIKey = getenv("OPENROUTER_API_KEY")
		}
	}

	if key := getenv("QDRANT_API_KEY"); key != "" {
		c.Index.Qdrant.APIKey = key
	}
}

func normalizeOllamaHost(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "http://" + host
}

func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{BackendBolt, BackendQdrant}, c.Index.Backend) {
		errs = append(errs, fmt.Errorf("index.backend: unknown backend %q", c.Index.Backend))
	}
	if !slices.Contains([]string{EmbedderOllama, EmbedderHash}, c.Embeddings.Backend) {
		errs = append(errs, fmt.Errorf("embeddings.backend: unknown backend %q", c.Embeddings.Backend))
	}
	if c.Embeddings.Backend == EmbedderOllama && c.Embeddings.Model == "" {
		errs = append(errs, errors.New("embeddings.model: required for ollama"))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, errors.New("embeddings.dimension: must not be negative"))
	}
	if !slices.Contains(providers, c.Generation.Provider) {
		errs = append(errs, fmt.Errorf("generation.provider: unknown provider %q", c.Generation.Provider))
	}
	if c.Generation.Model == "" {
		errs = append(errs, errors.New("generation.model: required"))
	}
	if c.Generation.Provider != ProviderOllama && c.Generation.APIKey == "" {
		errs = append(errs, fmt.Errorf("generation.api_key: required for %s", c.Generation.Provider))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout: must be positive"))
	}
	if c.Generation.Retries < 0 || c.Generation.Retries > maxGenerationRetries {
		errs = append(errs, fmt.Errorf("generation.retries: must be between 0 and %d", maxGenerationRetries))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k: must be positive"))
	}
	if c.Retrieval.MaxContextChars < 0 {
		errs = append(errs, errors.New("retrieval.max_context_chars: must not be negative"))
	}

	return errors.Join(errs...)
}
