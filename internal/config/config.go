// Package config loads qabrain configuration.
//
// Precedence, lowest to highest:
//  1. Hardcoded defaults
//  2. User config (~/.config/qabrain/config.yaml)
//  3. Project config (.qabrain.yaml or .qabrain.yml)
//  4. Environment (QABRAIN_*), with a project .env file loaded first
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultDataDir       = ".qabrain"
	DefaultChunkSize     = 800
	DefaultChunkOverlap  = 120
	DefaultTopK          = 6
	DefaultBatchSize     = 32
	DefaultCacheSize     = 1000
	DefaultWatchDebounce = "500ms"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
)

// Config is the complete qabrain configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates on-disk state. Relative paths resolve against the
// project directory; IndexDir and UploadDir default to subdirectories of DataDir.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" json:"data_dir"`
	IndexDir  string `yaml:"index_dir" json:"index_dir"`
	UploadDir string `yaml:"upload_dir" json:"upload_dir"`
}

// ChunkingConfig sizes chunk windows, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider          string  `yaml:"provider" json:"provider"` // static | ollama
	Model             string  `yaml:"model" json:"model"`
	Dimensions        int     `yaml:"dimensions" json:"dimensions"` // 0 = provider default / auto-detect
	BatchSize         int     `yaml:"batch_size" json:"batch_size"`
	OllamaHost        string  `yaml:"ollama_host" json:"ollama_host"`
	Timeout           string  `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"` // 0 = unlimited
	CacheSize         int     `yaml:"cache_size" json:"cache_size"`                   // -1 disables the query cache
}

// RetrievalConfig configures queries.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" json:"top_k"`
}

// WatchConfig configures the upload directory watcher.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: DefaultDataDir,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      DefaultOllamaModel,
			BatchSize:  DefaultBatchSize,
			OllamaHost: DefaultOllamaHost,
			Timeout:    "60s",
			CacheSize:  DefaultCacheSize,
		},
		Retrieval: RetrievalConfig{
			TopK: DefaultTopK,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/qabrain/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/qabrain/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "qabrain", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "qabrain", "config.yaml")
	}
	return filepath.Join(home, ".config", "qabrain", "config.yaml")
}

// ProjectConfigPath returns the existing project config in dir, preferring
// .qabrain.yaml over .qabrain.yml, or "" if neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".qabrain.yaml", ".qabrain.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// Load loads configuration for the project in dir and resolves paths.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := ProjectConfigPath(dir); projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment
	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
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

	mergeString(&c.Paths.DataDir, other.Paths.DataDir)
	mergeString(&c.Paths.IndexDir, other.Paths.IndexDir)
	mergeString(&c.Paths.UploadDir, other.Paths.UploadDir)

	mergeInt(&c.Chunking.ChunkSize, other.Chunking.ChunkSize)
	mergeInt(&c.Chunking.ChunkOverlap, other.Chunking.ChunkOverlap)

	mergeString(&c.Embeddings.Provider, other.Embeddings.Provider)
	mergeString(&c.Embeddings.Model, other.Embeddings.Model)
	mergeInt(&c.Embeddings.Dimensions, other.Embeddings.Dimensions)
	mergeInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	mergeString(&c.Embeddings.OllamaHost, other.Embeddings.OllamaHost)
	mergeString(&c.Embeddings.Timeout, other.Embeddings.Timeout)
	if other.Embeddings.RequestsPerSecond != 0 {
		c.Embeddings.RequestsPerSecond = other.Embeddings.RequestsPerSecond
	}
	mergeInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)

	mergeInt(&c.Retrieval.TopK, other.Retrieval.TopK)

	// A bool cannot distinguish "unset" from false; true wins.
	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
	mergeString(&c.Watch.Debounce, other.Watch.Debounce)

	mergeString(&c.Server.LogLevel, other.Server.LogLevel)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies QABRAIN_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"QABRAIN_DATA_DIR":         &c.Paths.DataDir,
		"QABRAIN_INDEX_DIR":        &c.Paths.IndexDir,
		"QABRAIN_UPLOAD_DIR":       &c.Paths.UploadDir,
		"QABRAIN_EMBEDDER":         &c.Embeddings.Provider,
		"QABRAIN_EMBEDDINGS_MODEL": &c.Embeddings.Model,
		"QABRAIN_OLLAMA_HOST":      &c.Embeddings.OllamaHost,
		"QABRAIN_OLLAMA_TIMEOUT":   &c.Embeddings.Timeout,
		"QABRAIN_WATCH_DEBOUNCE":   &c.Watch.Debounce,
		"QABRAIN_LOG_LEVEL":        &c.Server.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"QABRAIN_CHUNK_SIZE":    &c.Chunking.ChunkSize,
		"QABRAIN_CHUNK_OVERLAP": &c.Chunking.ChunkOverlap,
		"QABRAIN_DIMENSIONS":    &c.Embeddings.Dimensions,
		"QABRAIN_BATCH_SIZE":    &c.Embeddings.BatchSize,
		"QABRAIN_TOP_K":         &c.Retrieval.TopK,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*dst = n
	}

	if v := os.Getenv("QABRAIN_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("QABRAIN_REQUESTS_PER_SECOND must be a number, got %q", v)
		}
		c.Embeddings.RequestsPerSecond = f
	}
	if v := os.Getenv("QABRAIN_WATCH"); v != "" {
		c.Watch.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// resolvePaths makes paths absolute against dir and fills derived defaults.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	c.Paths.DataDir = abs(c.Paths.DataDir)
	if c.Paths.IndexDir == "" {
		c.Paths.IndexDir = filepath.Join(c.Paths.DataDir, "index")
	}
	if c.Paths.UploadDir == "" {
		c.Paths.UploadDir = filepath.Join(c.Paths.DataDir, "uploads")
	}
	c.Paths.IndexDir = abs(c.Paths.IndexDir)
	c.Paths.UploadDir = abs(c.Paths.UploadDir)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		return fmt.Errorf("embeddings.requests_per_second must be non-negative, got %g", c.Embeddings.RequestsPerSecond)
	}
	if _, err := c.EmbedTimeout(); err != nil {
		return err
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// EmbedTimeout parses embeddings.timeout; empty means no override.
func (c *Config) EmbedTimeout() (time.Duration, error) {
	if c.Embeddings.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("embeddings.timeout must be a duration like 60s, got %q", c.Embeddings.Timeout)
	}
	return d, nil
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("watch.debounce must be a duration like 500ms, got %q", c.Watch.Debounce)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
