// Package config loads the layered YAML configuration for the RAG runtime:
// hardcoded defaults, then a user/global config, then a project config, then
// environment variable overrides, mirroring the teacher's precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration (SPEC_FULL.md section A).
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Assemble   AssembleConfig   `yaml:"assemble" json:"assemble"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" json:"circuit"`
	Agent      AgentConfig      `yaml:"agent" json:"agent"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StoreConfig configures the vector store backend and its HNSW index
// (spec.md §4.1).
type StoreConfig struct {
	Dimensions     int     `yaml:"dimensions" json:"dimensions"`
	Backend        string  `yaml:"backend" json:"backend"` // "hnsw" (default) or "bruteforce"
	M              int     `yaml:"m" json:"m"`
	EfConstruction int     `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int     `yaml:"ef_search" json:"ef_search"`
	Distance       string  `yaml:"distance" json:"distance"` // "cosine" (default), "dot", "euclidean"
}

// BM25Config configures the keyword ranker (spec.md §4.2).
type BM25Config struct {
	K1              float64 `yaml:"k1" json:"k1"`
	B               float64 `yaml:"b" json:"b"`
	MinDocFreq      int     `yaml:"min_doc_freq" json:"min_doc_freq"`
	MaxDocFreqRatio float64 `yaml:"max_doc_freq_ratio" json:"max_doc_freq_ratio"`
}

// RetrievalConfig configures hybrid retrieval and RRF fusion (spec.md §4.5).
type RetrievalConfig struct {
	TopK        int `yaml:"top_k" json:"top_k"`
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// Enhance turns on the synonym/casing query enhancer (spec.md §4.8's
	// optional enhance stage) ahead of retrieval.
	Enhance bool `yaml:"enhance" json:"enhance"`
}

// RerankConfig selects and configures a reranker (spec.md §4.6).
type RerankConfig struct {
	// Strategy is "none", "mmr", "crossencoder", or "llm".
	Strategy   string  `yaml:"strategy" json:"strategy"`
	TopK       int     `yaml:"top_k" json:"top_k"`
	MinScore   float64 `yaml:"min_score" json:"min_score"`
	MMRLambda  float64 `yaml:"mmr_lambda" json:"mmr_lambda"`
}

// AssembleConfig configures context assembly (spec.md §4.7).
type AssembleConfig struct {
	Ordering           string `yaml:"ordering" json:"ordering"` // "relevance" (default) or "sandwich"
	SandwichStartCount int    `yaml:"sandwich_start_count" json:"sandwich_start_count"`
	MaxTokens          int    `yaml:"max_tokens" json:"max_tokens"`
	// UseTiktoken is loaded and merged like the other fields, but no
	// component reads it: the assembler and the agent conversation keep the
	// char/4 fallback estimator unless a caller passes another TokenCounter.
	UseTiktoken bool `yaml:"use_tiktoken" json:"use_tiktoken"`
}

// CacheConfig sizes the RAG result cache and the embedding cache (spec.md §9).
type CacheConfig struct {
	ResultCapacity    int `yaml:"result_capacity" json:"result_capacity"`
	ResultTTLSeconds  int `yaml:"result_ttl_seconds" json:"result_ttl_seconds"`
	EmbeddingCapacity int `yaml:"embedding_capacity" json:"embedding_capacity"`
}

// RetryConfig configures the shared retry policy (spec.md §4.10).
type RetryConfig struct {
	MaxRetries          int     `yaml:"max_retries" json:"max_retries"`
	BaseDelayMS         int     `yaml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMS          int     `yaml:"max_delay_ms" json:"max_delay_ms"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	Jitter              bool    `yaml:"jitter" json:"jitter"`
}

// CircuitConfig configures the shared circuit breaker (spec.md §4.11).
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	ResetTimeoutMS   int `yaml:"reset_timeout_ms" json:"reset_timeout_ms"`
	HalfOpenRequests int `yaml:"half_open_requests" json:"half_open_requests"`
}

// AgentConfig bounds the ReAct loop (spec.md §4.13).
type AgentConfig struct {
	MaxIterations    int `yaml:"max_iterations" json:"max_iterations"`
	ToolTimeoutMS    int `yaml:"tool_timeout_ms" json:"tool_timeout_ms"`
	ConversationMaxTokens int `yaml:"conversation_max_tokens" json:"conversation_max_tokens"`
}

// ServerConfig configures the CLI/daemon front-end.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogPath  string `yaml:"log_path" json:"log_path"`
}

// NewConfig returns a Config populated with the defaults every component in
// this module already declares as its own zero-value fallback (spec.md's
// per-module "Default*" constructors) — config.go centralizes them into one
// YAML-editable surface rather than inventing new ones.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Backend:        "hnsw",
			M:              16,
			EfConstruction: 200,
			EfSearch:       100,
			Distance:       "cosine",
		},
		BM25: BM25Config{
			K1:              1.2,
			B:               0.75,
			MinDocFreq:      1,
			MaxDocFreqRatio: 1.0,
		},
		Retrieval: RetrievalConfig{
			TopK:        10,
			RRFConstant: 60,
			Enhance:     false,
		},
		Rerank: RerankConfig{
			Strategy:  "none",
			TopK:      10,
			MinScore:  0,
			MMRLambda: 0.5,
		},
		Assemble: AssembleConfig{
			Ordering:           "relevance",
			SandwichStartCount: 0,
			MaxTokens:          0,
			UseTiktoken:        false,
		},
		Cache: CacheConfig{
			ResultCapacity:    256,
			ResultTTLSeconds:  300,
			EmbeddingCapacity: 1000,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			BaseDelayMS:       100,
			MaxDelayMS:        5000,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		Circuit: CircuitConfig{
			FailureThreshold: 5,
			ResetTimeoutMS:   60000,
			HalfOpenRequests: 1,
		},
		Agent: AgentConfig{
			MaxIterations:         10,
			ToolTimeoutMS:         30000,
			ConversationMaxTokens: 0,
		},
		Server: ServerConfig{
			LogLevel: "info",
			LogPath:  "",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/ragctl/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragctl/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragctl", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragctl", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragctl", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file. Returns nil config and
// nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from the specified directory, applying, in order
// of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/ragctl/config.yaml)
//  3. Project config (.ragctl.yaml in dir)
//  4. Environment variables (RAGCTL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .ragctl.yaml or .ragctl.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".ragctl.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".ragctl.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.Dimensions != 0 {
		c.Store.Dimensions = other.Store.Dimensions
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.M != 0 {
		c.Store.M = other.Store.M
	}
	if other.Store.EfConstruction != 0 {
		c.Store.EfConstruction = other.Store.EfConstruction
	}
	if other.Store.EfSearch != 0 {
		c.Store.EfSearch = other.Store.EfSearch
	}
	if other.Store.Distance != "" {
		c.Store.Distance = other.Store.Distance
	}

	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}
	if other.BM25.MinDocFreq != 0 {
		c.BM25.MinDocFreq = other.BM25.MinDocFreq
	}
	if other.BM25.MaxDocFreqRatio != 0 {
		c.BM25.MaxDocFreqRatio = other.BM25.MaxDocFreqRatio
	}

	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.Enhance {
		c.Retrieval.Enhance = other.Retrieval.Enhance
	}

	if other.Rerank.Strategy != "" {
		c.Rerank.Strategy = other.Rerank.Strategy
	}
	if other.Rerank.TopK != 0 {
		c.Rerank.TopK = other.Rerank.TopK
	}
	if other.Rerank.MinScore != 0 {
		c.Rerank.MinScore = other.Rerank.MinScore
	}
	if other.Rerank.MMRLambda != 0 {
		c.Rerank.MMRLambda = other.Rerank.MMRLambda
	}

	if other.Assemble.Ordering != "" {
		c.Assemble.Ordering = other.Assemble.Ordering
	}
	if other.Assemble.SandwichStartCount != 0 {
		c.Assemble.SandwichStartCount = other.Assemble.SandwichStartCount
	}
	if other.Assemble.MaxTokens != 0 {
		c.Assemble.MaxTokens = other.Assemble.MaxTokens
	}
	if other.Assemble.UseTiktoken {
		c.Assemble.UseTiktoken = other.Assemble.UseTiktoken
	}

	if other.Cache.ResultCapacity != 0 {
		c.Cache.ResultCapacity = other.Cache.ResultCapacity
	}
	if other.Cache.ResultTTLSeconds != 0 {
		c.Cache.ResultTTLSeconds = other.Cache.ResultTTLSeconds
	}
	if other.Cache.EmbeddingCapacity != 0 {
		c.Cache.EmbeddingCapacity = other.Cache.EmbeddingCapacity
	}

	if other.Retry.MaxRetries != 0 {
		c.Retry.MaxRetries = other.Retry.MaxRetries
	}
	if other.Retry.BaseDelayMS != 0 {
		c.Retry.BaseDelayMS = other.Retry.BaseDelayMS
	}
	if other.Retry.MaxDelayMS != 0 {
		c.Retry.MaxDelayMS = other.Retry.MaxDelayMS
	}
	if other.Retry.BackoffMultiplier != 0 {
		c.Retry.BackoffMultiplier = other.Retry.BackoffMultiplier
	}

	if other.Circuit.FailureThreshold != 0 {
		c.Circuit.FailureThreshold = other.Circuit.FailureThreshold
	}
	if other.Circuit.ResetTimeoutMS != 0 {
		c.Circuit.ResetTimeoutMS = other.Circuit.ResetTimeoutMS
	}
	if other.Circuit.HalfOpenRequests != 0 {
		c.Circuit.HalfOpenRequests = other.Circuit.HalfOpenRequests
	}

	if other.Agent.MaxIterations != 0 {
		c.Agent.MaxIterations = other.Agent.MaxIterations
	}
	if other.Agent.ToolTimeoutMS != 0 {
		c.Agent.ToolTimeoutMS = other.Agent.ToolTimeoutMS
	}
	if other.Agent.ConversationMaxTokens != 0 {
		c.Agent.ConversationMaxTokens = other.Agent.ConversationMaxTokens
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.LogPath != "" {
		c.Server.LogPath = other.Server.LogPath
	}
}

// applyEnvOverrides applies RAGCTL_* environment variable overrides
// (highest precedence).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGCTL_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("RAGCTL_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("RAGCTL_RERANK_STRATEGY"); v != "" {
		c.Rerank.Strategy = v
	}
	if v := os.Getenv("RAGCTL_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Assemble.MaxTokens = n
		}
	}
	if v := os.Getenv("RAGCTL_AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("RAGCTL_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must be non-negative, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be between 0 and 1, got %f", c.BM25.B)
	}

	if c.Store.Backend != "hnsw" && c.Store.Backend != "bruteforce" {
		return fmt.Errorf("store.backend must be 'hnsw' or 'bruteforce', got %s", c.Store.Backend)
	}
	validDistances := map[string]bool{"cosine": true, "dot": true, "euclidean": true}
	if !validDistances[strings.ToLower(c.Store.Distance)] {
		return fmt.Errorf("store.distance must be 'cosine', 'dot', or 'euclidean', got %s", c.Store.Distance)
	}

	validStrategies := map[string]bool{"none": true, "mmr": true, "crossencoder": true, "llm": true}
	if !validStrategies[strings.ToLower(c.Rerank.Strategy)] {
		return fmt.Errorf("rerank.strategy must be 'none', 'mmr', 'crossencoder', or 'llm', got %s", c.Rerank.Strategy)
	}
	if c.Rerank.MMRLambda < 0 || c.Rerank.MMRLambda > 1 {
		return fmt.Errorf("rerank.mmr_lambda must be between 0 and 1, got %f", c.Rerank.MMRLambda)
	}

	validOrderings := map[string]bool{"relevance": true, "sandwich": true}
	if !validOrderings[strings.ToLower(c.Assemble.Ordering)] {
		return fmt.Errorf("assemble.ordering must be 'relevance' or 'sandwich', got %s", c.Assemble.Ordering)
	}
	if c.Assemble.MaxTokens < 0 {
		return fmt.Errorf("assemble.max_tokens must be non-negative, got %d", c.Assemble.MaxTokens)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative, got %d", c.Retry.MaxRetries)
	}
	if c.Circuit.FailureThreshold <= 0 {
		return fmt.Errorf("circuit.failure_threshold must be positive, got %d", c.Circuit.FailureThreshold)
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeNewDefaults adds new default fields while preserving existing values,
// returning the dotted field names that were added. Mirrors the teacher's
// upgrade-migration helper for configs written by an older binary version.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Retrieval.RRFConstant == 0 {
		c.Retrieval.RRFConstant = defaults.Retrieval.RRFConstant
		added = append(added, "retrieval.rrf_constant")
	}
	if c.Cache.ResultCapacity == 0 {
		c.Cache.ResultCapacity = defaults.Cache.ResultCapacity
		added = append(added, "cache.result_capacity")
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = defaults.Retry.BackoffMultiplier
		added = append(added, "retry.backoff_multiplier")
	}
	if c.Circuit.HalfOpenRequests == 0 {
		c.Circuit.HalfOpenRequests = defaults.Circuit.HalfOpenRequests
		added = append(added, "circuit.half_open_requests")
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = defaults.Agent.MaxIterations
		added = append(added, "agent.max_iterations")
	}

	return added
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
