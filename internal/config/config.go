// Package config loads floatq configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// FLOATQ_* environment variables (which a .env file may populate). The
// result is checked by Validate before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/qcache"
)

// Default values.
const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 1024
	DefaultAddr        = ":8080"
	DefaultLogLevel    = "info"
	DefaultStmtTimeout = 30 * time.Second
	DefaultMaxConns    = 8
)

// Config is the complete configuration.
type Config struct {
	// Catalog is a CUE catalog path. Empty selects the embedded catalog.
	Catalog  string         `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	Engine   EngineConfig   `yaml:"engine"`
	Server   ServerConfig   `yaml:"server"`
	// QueryLog is the SQLite query log path. Empty disables the log.
	QueryLog string `yaml:"query_log"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig configures the PostgreSQL data source. An empty DSN
// leaves the pipeline without a database; fetch_data then fails.
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// LLMConfig configures the language-model drafter. The API key is only
// read from the environment.
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"-"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// CacheConfig bounds the query cache.
type CacheConfig struct {
	Capacity uint64        `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// EngineConfig configures the tool orchestrator.
type EngineConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Attempts       uint          `yaml:"attempts"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MaxInvocations int           `yaml:"max_invocations"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			MaxConns:         DefaultMaxConns,
			StatementTimeout: DefaultStmtTimeout,
		},
		LLM: LLMConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Cache: CacheConfig{
			Capacity: qcache.DefaultCapacity,
			TTL:      qcache.DefaultTTL,
		},
		Engine: EngineConfig{
			Concurrency:    engine.DefaultConcurrency,
			CallTimeout:    engine.DefaultCallTimeout,
			Attempts:       1,
			RetryInterval:  engine.DefaultRetryInterval,
			MaxInvocations: engine.DefaultMaxInvocations,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		LogLevel: DefaultLogLevel,
	}
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load returns the defaults overlaid with the YAML file at path (if path
// is non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML rejects unknown keys so that typos surface.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("FLOATQ_CATALOG", &c.Catalog)
	str("FLOATQ_QUERY_LOG", &c.QueryLog)
	str("FLOATQ_LOG_LEVEL", &c.LogLevel)
	str("FLOATQ_ADDR", &c.Server.Addr)
	str("FLOATQ_LLM_MODEL", &c.LLM.Model)
	str("DATABASE_URL", &c.Database.DSN)
	str("FLOATQ_DATABASE_URL", &c.Database.DSN)
	str("ANTHROPIC_API_KEY", &c.LLM.APIKey)

	if c.LLM.Enabled, err = envBool("FLOATQ_LLM_ENABLED", c.LLM.Enabled); err != nil {
		return err
	}
	if c.Engine.Concurrency, err = envInt("FLOATQ_CONCURRENCY", c.Engine.Concurrency); err != nil {
		return err
	}
	if c.Engine.MaxInvocations, err = envInt("FLOATQ_MAX_INVOCATIONS", c.Engine.MaxInvocations); err != nil {
		return err
	}
	attempts, err := envInt("FLOATQ_ATTEMPTS", int(c.Engine.Attempts))
	if err != nil {
		return err
	}
	if attempts < 0 {
		return fmt.Errorf("config: FLOATQ_ATTEMPTS must not be negative")
	}
	c.Engine.Attempts = uint(attempts)
	if c.Engine.CallTimeout, err = envDuration("FLOATQ_CALL_TIMEOUT", c.Engine.CallTimeout); err != nil {
		return err
	}
	if c.Cache.TTL, err = envDuration("FLOATQ_CACHE_TTL", c.Cache.TTL); err != nil {
		return err
	}
	return nil
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()
	if c.Engine.Concurrency < 0 {
		return fmt.Errorf("config: engine.concurrency must not be negative")
	}
	if c.Engine.Concurrency == 0 {
		c.Engine.Concurrency = def.Engine.Concurrency
	}
	if c.Engine.CallTimeout <= 0 {
		c.Engine.CallTimeout = def.Engine.CallTimeout
	}
	if c.Engine.Attempts == 0 {
		c.Engine.Attempts = 1
	}
	if c.Engine.RetryInterval <= 0 {
		c.Engine.RetryInterval = def.Engine.RetryInterval
	}
	if c.Engine.MaxInvocations <= 0 {
		c.Engine.MaxInvocations = def.Engine.MaxInvocations
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = def.Cache.Capacity
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("config: database.max_conns must not be negative")
	}
	if c.Database.StatementTimeout <= 0 {
		c.Database.StatementTimeout = def.Database.StatementTimeout
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm.enabled requires ANTHROPIC_API_KEY")
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	switch c.LogLevel {
	case "":
		c.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
