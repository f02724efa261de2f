package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for cogito
type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Entailment EntailmentConfig `json:"entailment"`
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Memory     MemoryConfig     `json:"memory"`
	Planner    PlannerConfig    `json:"planner"`
	Wall       WallConfig       `json:"wall"`
	Executor   ExecutorConfig   `json:"executor"`
	Verifier   VerifierConfig   `json:"verifier"`
	Audit      AuditConfig      `json:"audit"`
	Citations  CitationConfig   `json:"citations"`
}

// LLMConfig holds LLM API configuration (vLLM/LiteLLM)
type LLMConfig struct {
	URL         string  `json:"url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// EmbeddingConfig holds embedding API configuration
type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`      // e.g., "text-embedding-3-small"
	Dimensions int    `json:"dimensions"` // e.g., 1536 for text-embedding-3-small
}

// EntailmentConfig holds the NLI scoring endpoint configuration. When URL is
// empty the verifier uses its keyword-overlap fallback.
type EntailmentConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// PostgreSQL connection; empty selects the in-process backend
	PostgresURL string `json:"postgres_url"`
	// DataDir holds the WAL spool, citation blobs, and scratch roots
	DataDir string `json:"data_dir"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// MemoryConfig tunes retrieval and clustering in the memory service.
type MemoryConfig struct {
	RecentK              int     `json:"recent_k"`
	SemanticK            int     `json:"semantic_k"`
	SimilarityFloor      float64 `json:"similarity_floor"`
	ClusterJoinThreshold float64 `json:"cluster_join_threshold"`
	ForgetFloor          float64 `json:"forget_floor"`
	ContextBudgetChars   int     `json:"context_budget_chars"`
}

// PlannerConfig tunes the planner strategies.
type PlannerConfig struct {
	MaxRetries int `json:"max_retries"`
	DeadlineMs int `json:"deadline_ms"`
}

// RateLimitConfig is one token bucket: Limit requests per WindowSec seconds.
type RateLimitConfig struct {
	Limit     int `json:"limit"`
	WindowSec int `json:"window_sec"`
}

// WallConfig holds validation wall policy.
type WallConfig struct {
	RateLimits       map[string]RateLimitConfig `json:"rate_limits"`
	AllowlistDomains []string                   `json:"allowlist_domains"`
	FSRoot           string                     `json:"fs_root"`
	FSDeniedExts     []string                   `json:"fs_denied_extensions"`
	FSMaxBytes       int64                      `json:"fs_max_bytes"`
}

// ExecutorConfig tunes the sandbox executor.
type ExecutorConfig struct {
	DefaultDeadlineMs  int   `json:"default_deadline_ms"`
	MaxDeadlineMs      int   `json:"max_deadline_ms"`
	MaxOutputBytes     int   `json:"max_output_bytes"`
	PerUserParallelism int   `json:"per_user_parallelism"`
	GlobalParallelism  int   `json:"global_parallelism"`
	MaxScratchBytes    int64 `json:"max_scratch_bytes"`
}

// VerifierConfig tunes post-condition and entailment checking.
type VerifierConfig struct {
	EntailmentFloor float64 `json:"entailment_floor"`
	CoverageBlock   float64 `json:"coverage_block"`
	CoverageWarn    float64 `json:"coverage_warn"`
	BatchSize       int     `json:"batch_size"`
	BatchDeadlineMs int     `json:"batch_deadline_ms"`
}

// AuditConfig locates the append-only audit log.
type AuditConfig struct {
	Path        string `json:"path"`
	RotateBytes int64  `json:"rotate_bytes"`
}

// CitationConfig locates the content-addressed citation store.
type CitationConfig struct {
	Dir string `json:"dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cogito")

	return &Config{
		LLM: LLMConfig{
			URL:         "http://localhost:8000/v1",
			APIKey:      "",
			Model:       "Qwen/Qwen3-8B-AWQ",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Embedding: EmbeddingConfig{
			URL:        "http://localhost:11434/v1",
			APIKey:     "",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Entailment: EntailmentConfig{
			URL:    "",
			APIKey: "",
			Model:  "distilbert-base-uncased-mnli",
		},
		Database: DatabaseConfig{
			PostgresURL: "",
			DataDir:     dataDir,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Memory: MemoryConfig{
			RecentK:              8,
			SemanticK:            5,
			SimilarityFloor:      0.25,
			ClusterJoinThreshold: 0.55,
			ForgetFloor:          0.7,
			ContextBudgetChars:   4096,
		},
		Planner: PlannerConfig{
			MaxRetries: 2,
			DeadlineMs: 10_000,
		},
		Wall: WallConfig{
			RateLimits: map[string]RateLimitConfig{
				"safe":       {Limit: 50, WindowSec: 60},
				"review":     {Limit: 20, WindowSec: 60},
				"confirm":    {Limit: 5, WindowSec: 300},
				"owner-root": {Limit: 2, WindowSec: 3600},
			},
			AllowlistDomains: []string{
				"api.open-meteo.com",
				"geocoding-api.open-meteo.com",
				"en.wikipedia.org",
				"duckduckgo.com",
			},
			FSRoot:       filepath.Join(dataDir, "workspace"),
			FSDeniedExts: []string{".exe", ".dll", ".so", ".dylib", ".sh", ".bat", ".cmd", ".scpt"},
			FSMaxBytes:   10 << 20,
		},
		Executor: ExecutorConfig{
			DefaultDeadlineMs:  30_000,
			MaxDeadlineMs:      120_000,
			MaxOutputBytes:     1_048_576,
			PerUserParallelism: 1,
			GlobalParallelism:  32,
			MaxScratchBytes:    64 << 20,
		},
		Verifier: VerifierConfig{
			EntailmentFloor: 0.6,
			CoverageBlock:   0.5,
			CoverageWarn:    0.8,
			BatchSize:       16,
			BatchDeadlineMs: 10_000,
		},
		Audit: AuditConfig{
			Path:        filepath.Join(dataDir, "audit", "decisions.jsonl"),
			RotateBytes: 32 << 20,
		},
		Citations: CitationConfig{
			Dir: filepath.Join(dataDir, "citations"),
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envInt64 loads an int64 environment variable into the target pointer if set and valid
func envInt64(key string, target *int64) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("COGITO_LLM_URL", &cfg.LLM.URL)
	envString("COGITO_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("COGITO_LLM_MODEL", &cfg.LLM.Model)
	envInt("COGITO_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("COGITO_LLM_TEMPERATURE", &cfg.LLM.Temperature)

	envString("COGITO_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("COGITO_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("COGITO_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("COGITO_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envString("COGITO_ENTAILMENT_URL", &cfg.Entailment.URL)
	envString("COGITO_ENTAILMENT_API_KEY", &cfg.Entailment.APIKey)
	envString("COGITO_ENTAILMENT_MODEL", &cfg.Entailment.Model)

	envString("COGITO_POSTGRES_URL", &cfg.Database.PostgresURL)
	envString("COGITO_DATA_DIR", &cfg.Database.DataDir)

	envString("COGITO_SERVER_HOST", &cfg.Server.Host)
	envInt("COGITO_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("COGITO_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envInt("COGITO_MEMORY_RECENT_K", &cfg.Memory.RecentK)
	envInt("COGITO_MEMORY_SEMANTIC_K", &cfg.Memory.SemanticK)
	envFloat("COGITO_MEMORY_SIMILARITY_FLOOR", &cfg.Memory.SimilarityFloor)
	envFloat("COGITO_MEMORY_CLUSTER_JOIN_THRESHOLD", &cfg.Memory.ClusterJoinThreshold)
	envFloat("COGITO_MEMORY_FORGET_FLOOR", &cfg.Memory.ForgetFloor)
	envInt("COGITO_MEMORY_CONTEXT_BUDGET_CHARS", &cfg.Memory.ContextBudgetChars)

	envInt("COGITO_PLANNER_MAX_RETRIES", &cfg.Planner.MaxRetries)
	envInt("COGITO_PLANNER_DEADLINE_MS", &cfg.Planner.DeadlineMs)

	envStringSlice("COGITO_WALL_ALLOWLIST_DOMAINS", &cfg.Wall.AllowlistDomains)
	envString("COGITO_WALL_FS_ROOT", &cfg.Wall.FSRoot)
	envStringSlice("COGITO_WALL_FS_DENIED_EXTENSIONS", &cfg.Wall.FSDeniedExts)
	envInt64("COGITO_WALL_FS_MAX_BYTES", &cfg.Wall.FSMaxBytes)

	envInt("COGITO_EXECUTOR_DEFAULT_DEADLINE_MS", &cfg.Executor.DefaultDeadlineMs)
	envInt("COGITO_EXECUTOR_MAX_DEADLINE_MS", &cfg.Executor.MaxDeadlineMs)
	envInt("COGITO_EXECUTOR_MAX_OUTPUT_BYTES", &cfg.Executor.MaxOutputBytes)
	envInt("COGITO_EXECUTOR_PER_USER_PARALLELISM", &cfg.Executor.PerUserParallelism)
	envInt("COGITO_EXECUTOR_GLOBAL_PARALLELISM", &cfg.Executor.GlobalParallelism)
	envInt64("COGITO_EXECUTOR_MAX_SCRATCH_BYTES", &cfg.Executor.MaxScratchBytes)

	envFloat("COGITO_VERIFIER_ENTAILMENT_FLOOR", &cfg.Verifier.EntailmentFloor)
	envFloat("COGITO_VERIFIER_COVERAGE_BLOCK", &cfg.Verifier.CoverageBlock)
	envFloat("COGITO_VERIFIER_COVERAGE_WARN", &cfg.Verifier.CoverageWarn)
	envInt("COGITO_VERIFIER_BATCH_SIZE", &cfg.Verifier.BatchSize)
	envInt("COGITO_VERIFIER_BATCH_DEADLINE_MS", &cfg.Verifier.BatchDeadlineMs)

	envString("COGITO_AUDIT_PATH", &cfg.Audit.Path)
	envInt64("COGITO_AUDIT_ROTATE_BYTES", &cfg.Audit.RotateBytes)

	envString("COGITO_CITATIONS_DIR", &cfg.Citations.Dir)

	for _, dir := range []string{cfg.Database.DataDir, cfg.Wall.FSRoot, cfg.Citations.Dir, filepath.Dir(cfg.Audit.Path)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsEmbeddingConfigured returns true if embedding service is configured
func (c *Config) IsEmbeddingConfigured() bool {
	return c.Embedding.URL != ""
}

// IsEntailmentConfigured returns true if the NLI endpoint is configured
func (c *Config) IsEntailmentConfigured() bool {
	return c.Entailment.URL != ""
}

// ScratchRoot returns the directory under which per-turn scratch dirs live.
func (c *Config) ScratchRoot() string {
	return filepath.Join(c.Database.DataDir, "scratch")
}

// WALPath returns the write-ahead spool file for memory commits.
func (c *Config) WALPath() string {
	return filepath.Join(c.Database.DataDir, "memory-wal.jsonl")
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.URL != "" && !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}

	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.Embedding.URL != "" {
		if !isValidURL(c.Embedding.URL) {
			errs = append(errs, "Embedding URL must be a valid URL")
		}
		if c.Embedding.Dimensions < 1 {
			errs = append(errs, "Embedding dimensions must be positive when URL is set")
		}
	}
	if c.Entailment.URL != "" && !isValidURL(c.Entailment.URL) {
		errs = append(errs, "Entailment URL must be a valid URL")
	}

	if c.Memory.RecentK < 1 {
		errs = append(errs, "memory recent_k must be at least 1")
	}
	if c.Memory.SemanticK < 0 {
		errs = append(errs, "memory semantic_k must not be negative")
	}
	if c.Memory.SimilarityFloor < 0 || c.Memory.SimilarityFloor > 1 {
		errs = append(errs, "memory similarity_floor must be in [0,1]")
	}
	if c.Memory.ClusterJoinThreshold < 0 || c.Memory.ClusterJoinThreshold > 1 {
		errs = append(errs, "memory cluster_join_threshold must be in [0,1]")
	}
	if c.Memory.ForgetFloor < c.Memory.SimilarityFloor {
		errs = append(errs, "memory forget_floor must not be below similarity_floor")
	}
	if c.Memory.ContextBudgetChars < 256 {
		errs = append(errs, "memory context_budget_chars must be at least 256")
	}

	if c.Planner.MaxRetries < 0 {
		errs = append(errs, "planner max_retries must not be negative")
	}
	if c.Planner.DeadlineMs < 1 {
		errs = append(errs, "planner deadline_ms must be positive")
	}

	for tier, rl := range c.Wall.RateLimits {
		if rl.Limit < 1 || rl.WindowSec < 1 {
			errs = append(errs, fmt.Sprintf("wall rate limit for tier %s must have positive limit and window", tier))
		}
	}
	if c.Wall.FSRoot == "" {
		errs = append(errs, "wall fs_root is required")
	} else if !filepath.IsAbs(c.Wall.FSRoot) {
		errs = append(errs, "wall fs_root must be an absolute path")
	}
	if c.Wall.FSMaxBytes < 1 {
		errs = append(errs, "wall fs_max_bytes must be positive")
	}

	if c.Executor.DefaultDeadlineMs < 1 {
		errs = append(errs, "executor default_deadline_ms must be positive")
	}
	if c.Executor.MaxDeadlineMs < c.Executor.DefaultDeadlineMs {
		errs = append(errs, "executor max_deadline_ms must not be below default_deadline_ms")
	}
	if c.Executor.MaxOutputBytes < 1 {
		errs = append(errs, "executor max_output_bytes must be positive")
	}
	if c.Executor.PerUserParallelism != 1 {
		errs = append(errs, "executor per_user_parallelism must be 1 (turns for one user are serialized)")
	}
	if c.Executor.GlobalParallelism < 1 {
		errs = append(errs, "executor global_parallelism must be at least 1")
	}

	if c.Verifier.EntailmentFloor < 0 || c.Verifier.EntailmentFloor > 1 {
		errs = append(errs, "verifier entailment_floor must be in [0,1]")
	}
	if c.Verifier.CoverageBlock > c.Verifier.CoverageWarn {
		errs = append(errs, "verifier coverage_block must not exceed coverage_warn")
	}
	if c.Verifier.BatchSize < 1 {
		errs = append(errs, "verifier batch_size must be positive")
	}

	if c.Audit.Path == "" {
		errs = append(errs, "audit path is required")
	}
	if c.Audit.RotateBytes < 1 {
		errs = append(errs, "audit rotate_bytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("COGITO_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	// Check ~/.config/cogito/config.json first
	configDir := filepath.Join(homeDir, ".config", "cogito")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	// Check ~/.cogito/config.json
	altPath := filepath.Join(homeDir, ".cogito", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}
