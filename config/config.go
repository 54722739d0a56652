// Package config loads runtime settings for a nemochat client from an
// optional YAML or TOML file and NEMOCHAT_* environment variables.
//
// Precedence, lowest first: built-in defaults, config file, .env file,
// process environment.
package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/haowjy/nemochat-go"
	"github.com/haowjy/nemochat-go/providers/lorem"
	"github.com/haowjy/nemochat-go/providers/relay"
	"github.com/haowjy/nemochat-go/stores"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "NEMOCHAT"

// ErrInvalidConfig is returned when the merged configuration is unusable.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds every runtime option. Each field can be set from a file
// (yaml/toml key) or the environment (NEMOCHAT_ + envconfig key).
type Config struct {
	// Upstream
	Provider  string        `yaml:"provider" toml:"provider" envconfig:"PROVIDER"`
	RelayURL  string        `yaml:"relay_url" toml:"relay_url" envconfig:"RELAY_URL"`
	RelayPath string        `yaml:"relay_path" toml:"relay_path" envconfig:"RELAY_PATH"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout" envconfig:"TIMEOUT"`

	// Persistence
	StoreBackend string        `yaml:"store" toml:"store" envconfig:"STORE"`
	SQLitePath   string        `yaml:"sqlite_path" toml:"sqlite_path" envconfig:"SQLITE_PATH"`
	RedisURL     string        `yaml:"redis_url" toml:"redis_url" envconfig:"REDIS_URL"`
	RedisTTL     time.Duration `yaml:"redis_ttl" toml:"redis_ttl" envconfig:"REDIS_TTL"`
	KeyPrefix    string        `yaml:"key_prefix" toml:"key_prefix" envconfig:"KEY_PREFIX"`

	// Conversation
	LogLevel string `yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	SeedFile string `yaml:"seed_file" toml:"seed_file" envconfig:"SEED_FILE"`

	// Development upstream
	LoremWords int           `yaml:"lorem_words" toml:"lorem_words" envconfig:"LOREM_WORDS"`
	LoremDelay time.Duration `yaml:"lorem_delay" toml:"lorem_delay" envconfig:"LOREM_DELAY"`
}

// Default returns the configuration used when nothing is set: the lorem
// upstream with in-memory persistence.
func Default() *Config {
	return &Config{
		Provider:     nemochat.ProviderLorem.String(),
		RelayPath:    relay.DefaultPath,
		Timeout:      relay.DefaultTimeout,
		StoreBackend: stores.BackendMemory,
		SQLitePath:   "nemochat.db",
		LogLevel:     "warn",
		LoremWords:   lorem.DefaultWords,
		LoremDelay:   lorem.DefaultDelay,
	}
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty), the nearest .env file and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	LoadDotEnv()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read configuration from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the file at path into cfg. The format follows the
// extension: .toml for TOML, anything else is parsed as YAML.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.Wrapf(err, "failed to parse TOML config %s", path)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "failed to parse YAML config %s", path)
		}
	}
	return nil
}

// LoadDotEnv searches for a .env file starting from the current directory
// and walking up the directory tree. It loads the first .env file found
// without overriding variables already set. If none is found it silently
// continues with the process environment.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Validate checks option combinations that cannot work.
func (c *Config) Validate() error {
	switch nemochat.ProviderID(c.Provider) {
	case nemochat.ProviderRelay:
		if c.RelayURL == "" {
			return errors.Wrap(ErrInvalidConfig, "relay provider requires NEMOCHAT_RELAY_URL")
		}
	case nemochat.ProviderLorem:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown provider %q", c.Provider)
	}

	switch c.StoreBackend {
	case stores.BackendMemory, "":
	case stores.BackendSQLite:
		if c.SQLitePath == "" {
			return errors.Wrap(ErrInvalidConfig, "sqlite store requires NEMOCHAT_SQLITE_PATH")
		}
	case stores.BackendRedis:
		if c.RedisURL == "" {
			return errors.Wrap(ErrInvalidConfig, "redis store requires NEMOCHAT_REDIS_URL")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown store %q", c.StoreBackend)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	if c.Timeout < 0 || c.RedisTTL < 0 || c.LoremDelay < 0 {
		return errors.Wrap(ErrInvalidConfig, "durations must not be negative")
	}
	return nil
}

// Logger returns a stderr logger at the configured level.
func (c *Config) Logger() *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "nemochat",
		Level:           level,
		ReportTimestamp: level <= log.DebugLevel,
	})
}

// Seed returns the seed file's contents, or the embedded seed when none is set.
func (c *Config) Seed() (nemochat.Seed, error) {
	if c.SeedFile == "" {
		return nemochat.DefaultSeed(), nil
	}
	return nemochat.LoadSeedFromFile(c.SeedFile)
}

// StoreOptions maps the persistence fields onto stores.Options.
func (c *Config) StoreOptions() stores.Options {
	return stores.Options{
		Backend:    c.StoreBackend,
		SQLitePath: c.SQLitePath,
		RedisURL:   c.RedisURL,
		RedisTTL:   c.RedisTTL,
	}
}

// Upstream constructs the configured provider.
func (c *Config) Upstream(logger *log.Logger) (nemochat.Upstream, error) {
	switch nemochat.ProviderID(c.Provider) {
	case nemochat.ProviderRelay:
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.Timeout
		p, err := relay.NewProvider(c.RelayURL,
			relay.WithPath(c.RelayPath),
			relay.WithHTTPClient(&http.Client{Transport: transport}),
			relay.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case nemochat.ProviderLorem:
		return lorem.NewProvider(
			lorem.WithWords(c.LoremWords),
			lorem.WithDelay(c.LoremDelay),
			lorem.WithLogger(logger),
		), nil
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown provider %q", c.Provider)
	}
}
