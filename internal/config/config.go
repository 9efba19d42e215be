package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the workspace-local state directory, kept inside the target
// repository so the index, snapshot, and config travel with it.
const Dir = ".amber"

// Store backends for the cache index.
const (
	StoreFile = "file"
	StoreBolt = "bolt"
)

// Config is the amber configuration.
type Config struct {
	Store  string       `yaml:"store"`
	Format string       `yaml:"format"`
	Scan   ScanConfig   `yaml:"scan"`
	Bundle BundleConfig `yaml:"bundle"`
	Cache  CacheConfig  `yaml:"cache"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Model  ModelConfig  `yaml:"model"`
	Redact RedactConfig `yaml:"redact"`
}

// ScanConfig bounds repository scans.
type ScanConfig struct {
	MaxFiles int `yaml:"maxFiles"`
	MaxDepth int `yaml:"maxDepth"`
}

// BundleConfig controls context assembly.
type BundleConfig struct {
	MaxLines   int `yaml:"maxLines"`
	TTLSeconds int `yaml:"ttlSeconds"`
}

// CacheConfig controls index maintenance horizons.
type CacheConfig struct {
	MaxAgeDays    int `yaml:"maxAgeDays"`
	RetentionDays int `yaml:"retentionDays"`
}

// FetchConfig controls the retry policy shared by remote calls.
type FetchConfig struct {
	Attempts              int `yaml:"attempts"`
	AttemptTimeoutSeconds int `yaml:"attemptTimeoutSeconds"`
	TimeoutSeconds        int `yaml:"timeoutSeconds"`
}

// ModelConfig selects the evaluation transport.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
}

// RedactConfig controls secret redaction of inlined text.
type RedactConfig struct {
	Secrets bool     `yaml:"secrets"`
	Paths   []string `yaml:"paths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Store:  StoreFile,
		Format: "text",
		Scan: ScanConfig{
			MaxFiles: 200,
			MaxDepth: 8,
		},
		Bundle: BundleConfig{
			MaxLines:   400,
			TTLSeconds: 3600,
		},
		Cache: CacheConfig{
			MaxAgeDays:    30,
			RetentionDays: 90,
		},
		Fetch: FetchConfig{
			Attempts:              3,
			AttemptTimeoutSeconds: 60,
			TimeoutSeconds:        300,
		},
		Model: ModelConfig{
			Provider: "anthropic",
			Name:     "claude-sonnet-4-20250514",
		},
		Redact: RedactConfig{
			Secrets: true,
			Paths:   []string{".env", "secrets"},
		},
	}
}

// Path returns the config file path for a repository root.
func Path(root string) string {
	return filepath.Join(root, Dir, "config.yaml")
}

// IndexPath returns the cache index path for a repository root under the
// given store backend.
func IndexPath(root, store string) string {
	if store == StoreBolt {
		return filepath.Join(root, Dir, "index.db")
	}
	return filepath.Join(root, Dir, "index.json")
}

// SnapshotPath returns the scan snapshot path for a repository root.
func SnapshotPath(root string) string {
	return filepath.Join(root, Dir, "scan.json")
}

// MaxAge returns the staleness horizon as a duration.
func (c Config) MaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
}

// Retention returns the compaction retention window as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Cache.RetentionDays) * 24 * time.Hour
}

// LoadFile loads config from the file for root. A missing file returns the
// zero Config and nil error.
func LoadFile(root string) (Config, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config file for root.
func Save(root string, cfg Config) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <-
// overrides. The overrides map comes from CLI flags; only non-empty values
// should be set.
func Load(root string, overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile(root)
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	mergeEnv(&cfg)
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.Store != "" {
		dst.Store = src.Store
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.Scan.MaxFiles > 0 {
		dst.Scan.MaxFiles = src.Scan.MaxFiles
	}
	if src.Scan.MaxDepth > 0 {
		dst.Scan.MaxDepth = src.Scan.MaxDepth
	}
	if src.Bundle.MaxLines > 0 {
		dst.Bundle.MaxLines = src.Bundle.MaxLines
	}
	if src.Bundle.TTLSeconds > 0 {
		dst.Bundle.TTLSeconds = src.Bundle.TTLSeconds
	}
	if src.Cache.MaxAgeDays > 0 {
		dst.Cache.MaxAgeDays = src.Cache.MaxAgeDays
	}
	if src.Cache.RetentionDays > 0 {
		dst.Cache.RetentionDays = src.Cache.RetentionDays
	}
	if src.Fetch.Attempts > 0 {
		dst.Fetch.Attempts = src.Fetch.Attempts
	}
	if src.Fetch.AttemptTimeoutSeconds > 0 {
		dst.Fetch.AttemptTimeoutSeconds = src.Fetch.AttemptTimeoutSeconds
	}
	if src.Fetch.TimeoutSeconds > 0 {
		dst.Fetch.TimeoutSeconds = src.Fetch.TimeoutSeconds
	}
	if src.Model.Provider != "" {
		dst.Model.Provider = src.Model.Provider
	}
	if src.Model.Name != "" {
		dst.Model.Name = src.Model.Name
	}
	// YAML cannot distinguish an unset bool from false, so the redact
	// section is taken wholesale only when it lists paths.
	if len(src.Redact.Paths) > 0 {
		dst.Redact = src.Redact
	}
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("AMBER_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("AMBER_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("AMBER_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("AMBER_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("AMBER_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.MaxFiles = n
		}
	}
	if v := os.Getenv("AMBER_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxAgeDays = n
		}
	}
	if v := os.Getenv("AMBER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.TimeoutSeconds = n
		}
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns an error when
// the key is unknown or the value does not parse.
func SetField(cfg *Config, key, value string) error {
	intField := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	switch key {
	case "store":
		if value != StoreFile && value != StoreBolt {
			return fmt.Errorf("store must be %q or %q", StoreFile, StoreBolt)
		}
		cfg.Store = value
	case "format":
		cfg.Format = value
	case "scan.maxFiles":
		return intField(&cfg.Scan.MaxFiles)
	case "scan.maxDepth":
		return intField(&cfg.Scan.MaxDepth)
	case "bundle.maxLines":
		return intField(&cfg.Bundle.MaxLines)
	case "bundle.ttlSeconds":
		return intField(&cfg.Bundle.TTLSeconds)
	case "cache.maxAgeDays":
		return intField(&cfg.Cache.MaxAgeDays)
	case "cache.retentionDays":
		return intField(&cfg.Cache.RetentionDays)
	case "fetch.attempts":
		return intField(&cfg.Fetch.Attempts)
	case "fetch.attemptTimeoutSeconds":
		return intField(&cfg.Fetch.AttemptTimeoutSeconds)
	case "fetch.timeoutSeconds":
		return intField(&cfg.Fetch.TimeoutSeconds)
	case "model.provider":
		cfg.Model.Provider = value
	case "model.name":
		cfg.Model.Name = value
	case "redact.secrets":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("redact.secrets must be a boolean: %w", err)
		}
		cfg.Redact.Secrets = b
	case "redact.paths":
		cfg.Redact.Paths = splitComma(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
