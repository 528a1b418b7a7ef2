package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MTREEX_OUTPUT=json.
const EnvPrefix = "MTREEX"

// EnvFile is the dotenv file in the config directory whose MTREEX_
// variables act as environment overrides.
const EnvFile = "mtreex.env"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Format     string            `mapstructure:"format"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// GenerateConfig configures manifest generation.
type GenerateConfig struct {
	Keywords []string `mapstructure:"keywords"`
	Workers  int      `mapstructure:"workers"`
}

// CacheConfig configures the digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// JournalConfig configures the operation journal.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Output        string         `mapstructure:"output"`
	Layout        string         `mapstructure:"layout"`
	Strict        bool           `mapstructure:"strict"`
	UnescapeNames bool           `mapstructure:"unescape_names"`
	Exclude       []string       `mapstructure:"exclude"`
	Generate      GenerateConfig `mapstructure:"generate"`
	Cache         CacheConfig    `mapstructure:"cache"`
	Journal       JournalConfig  `mapstructure:"journal"`
	Logging       LoggingConfig  `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/mtreex/config.yaml
//   - $HOME/.config/mtreex/config.yaml
//
// Environment variables are prefixed with MTREEX_ (e.g., MTREEX_OUTPUT).
func Load() (*Config, error) {
	v := viper.New()
	if err := Setup(v); err != nil {
		return nil, err
	}
	if err := ReadIn(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Setup registers config search paths, environment binding and defaults
// on v. Callers that bind command-line flags do so on the same instance.
func Setup(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "mtreex"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "mtreex"))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return LoadEnvFile(filepath.Join(dir, EnvFile))
}

// LoadEnvFile exports the MTREEX_ variables of a dotenv file that the
// environment does not already set. Other variables are ignored and a
// missing file is not an error.
func LoadEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for key, val := range vars {
		if !strings.HasPrefix(key, EnvPrefix+"_") {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("layout", DefaultLayout)
	v.SetDefault("strict", false)
	v.SetDefault("unescape_names", false)
	v.SetDefault("exclude", []string{})

	v.SetDefault("generate.keywords", DefaultKeywords)
	v.SetDefault("generate.workers", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means DefaultCachePath

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means DefaultJournalPath
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means the logging package default
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.rotation.compress", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// ReadIn reads the config file into v. A missing file is not an error.
func ReadIn(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// FromViper decodes the settings held by v and fills in derived paths.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath()
	} else if cfg.Cache.Path, err = ExpandPath(cfg.Cache.Path); err != nil {
		return nil, err
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath()
	} else if cfg.Journal.Path, err = ExpandPath(cfg.Journal.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path != "" {
		if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// ConfigDir returns the configuration directory path, expanding ~ to the user's home directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "mtreex"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "mtreex"), nil
}

// ConfigPath returns the path of the config file Load looks for first.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns
// its path. An existing file is left untouched.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# mtreex configuration

# Output format for convert: xml, json, jsonl, yaml, toml, plain, tsv,
# csv, markdown, markdown-term, pretty, tree, mtree, template, paths, null
output: %s

# Layout for structured formats: shallow or deep
layout: %s

# Treat two entries for the same path as an error
strict: false

# Decode \ooo escapes in names when parsing
unescape_names: false

# Glob patterns skipped by generate and verify
exclude: []

# Manifest generation
generate:
  keywords: [%s]
  # Digest workers (0 = auto)
  workers: 0

# Digest cache, keyed by path, size and mtime
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/mtreex/digests
  path: ""

# Journal of convert, generate and verify runs
journal:
  enabled: true
  # Empty means $XDG_STATE_HOME/mtreex/journal
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/mtreex/mtreex.log)
  path: ""
  # Log file format: text, json, logfmt
  format: text
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
    compress: true    # gzip rotated files
  # Per-component log levels
  components:
    parser: info
    scanner: info
    verify: info
    cache: warn
    watcher: warn
    tui: info
`, DefaultOutput, DefaultLayout, strings.Join(DefaultKeywords, ", "), DefaultRetentionDays, DefaultLogLevel)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/mtreex/ for log files and the journal.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "mtreex")
}

// CacheDir returns $XDG_CACHE_HOME/mtreex/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "mtreex")
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// DefaultJournalPath returns the default journal directory.
func DefaultJournalPath() string {
	return filepath.Join(StateDir(), "journal")
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// EnsureCacheDir creates the cache directory if it doesn't exist.
func EnsureCacheDir() error {
	if err := os.MkdirAll(CacheDir(), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}
