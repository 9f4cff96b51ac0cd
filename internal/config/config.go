package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/morie/internal/errors"
)

// Config represents the complete morie configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Repository RepositoryConfig `yaml:"repository" json:"repository"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// RepositoryConfig locates the repository and the cache.
type RepositoryConfig struct {
	// Path is the repository working directory or bare repository.
	Path string `yaml:"path" json:"path"`

	// DataDir holds the cache database and lock files.
	// Empty means <path>/.morie.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// CacheConfig tunes the SQLite cache.
type CacheConfig struct {
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	CacheMB       int `yaml:"cache_mb" json:"cache_mb"`
}

// IndexConfig tunes indexing.
type IndexConfig struct {
	// Workers bounds parallel metadata extraction.
	Workers int `yaml:"workers" json:"workers"`

	// ExtractCacheSize is the number of extraction results kept in memory.
	ExtractCacheSize int `yaml:"extract_cache_size" json:"extract_cache_size"`

	// MaxBlobSize is the largest blob, in bytes, whose metadata is extracted.
	MaxBlobSize int64 `yaml:"max_blob_size" json:"max_blob_size"`
}

// WatchConfig configures `morie watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`

	// MetricsAddr serves /metrics when non-empty, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// LoggingConfig configures the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

const (
	projectConfigName    = ".morie.yaml"
	projectConfigAltName = ".morie.yml"
	defaultDataDirName   = ".morie"
	cacheFileName        = "cache.db"
)

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Repository: RepositoryConfig{
			Path: ".",
		},
		Cache: CacheConfig{
			BusyTimeoutMS: 5000,
			CacheMB:       16,
		},
		Index: IndexConfig{
			Workers:          runtime.NumCPU(),
			ExtractCacheSize: 1024,
			MaxBlobSize:      32 << 20,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/morie/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/morie/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "morie", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "morie", "config.yaml")
	}
	return filepath.Join(home, ".config", "morie", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the repository at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/morie/config.yaml)
//  3. Project config (.morie.yaml in the repository root)
//  4. Environment variables (MORIE_*)
//
// Repository.Path is set to dir unless MORIE_REPO overrides it.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.Repository.Path = dir

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, errors.ConfigError(err.Error(), err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, errors.ConfigError(err.Error(), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid configuration: %v", err), err).
			WithSuggestion("Check .morie.yaml and the MORIE_* environment variables")
	}
	return cfg, nil
}

// loadFromFile attempts to load configuration from .morie.yaml or .morie.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{projectConfigName, projectConfigAltName} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		var parsed Config
		if err := readYAML(p, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
// The repository path is not taken from files; it locates them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Repository.DataDir != "" {
		c.Repository.DataDir = other.Repository.DataDir
	}

	if other.Cache.BusyTimeoutMS != 0 {
		c.Cache.BusyTimeoutMS = other.Cache.BusyTimeoutMS
	}
	if other.Cache.CacheMB != 0 {
		c.Cache.CacheMB = other.Cache.CacheMB
	}

	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.ExtractCacheSize != 0 {
		c.Index.ExtractCacheSize = other.Index.ExtractCacheSize
	}
	if other.Index.MaxBlobSize != 0 {
		c.Index.MaxBlobSize = other.Index.MaxBlobSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies MORIE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MORIE_REPO"); v != "" {
		c.Repository.Path = v
	}
	if v := os.Getenv("MORIE_DATA_DIR"); v != "" {
		c.Repository.DataDir = v
	}
	if v := os.Getenv("MORIE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MORIE_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("MORIE_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("MORIE_METRICS_ADDR"); v != "" {
		c.Watch.MetricsAddr = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Repository.Path == "" {
		return fmt.Errorf("repository.path must not be empty")
	}
	if c.Cache.BusyTimeoutMS < 0 {
		return fmt.Errorf("cache.busy_timeout_ms must be non-negative, got %d", c.Cache.BusyTimeoutMS)
	}
	if c.Cache.CacheMB < 0 {
		return fmt.Errorf("cache.cache_mb must be non-negative, got %d", c.Cache.CacheMB)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must be non-negative, got %d", c.Index.Workers)
	}
	if c.Index.ExtractCacheSize < 0 {
		return fmt.Errorf("index.extract_cache_size must be non-negative, got %d", c.Index.ExtractCacheSize)
	}
	if c.Index.MaxBlobSize < 0 {
		return fmt.Errorf("index.max_blob_size must be non-negative, got %d", c.Index.MaxBlobSize)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce must be non-negative, got %s", c.Watch.Debounce)
	}
	return d, nil
}

// DataDir returns the directory holding the cache, defaulting to
// <repository>/.morie.
func (c *Config) DataDir() string {
	if c.Repository.DataDir != "" {
		return c.Repository.DataDir
	}
	return filepath.Join(c.Repository.Path, defaultDataDirName)
}

// CachePath returns the path of the cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir(), cacheFileName)
}

// BusyTimeout returns Cache.BusyTimeoutMS as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Cache.BusyTimeoutMS) * time.Millisecond
}

// FindProjectRoot finds the repository root by walking up from startDir
// until a .git entry or a .morie.yaml/.yml file is found. If none is found
// the absolute startDir is returned.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// .git is a file in worktrees and submodules.
		if pathExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, projectConfigName)) ||
			fileExists(filepath.Join(currentDir, projectConfigAltName)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
