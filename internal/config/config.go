// Package config loads the golem configuration file.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/extract"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config is the file configuration of a golem deployment. YAML or JSON.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Flows lists YAML flow files; FlowsDir is a directory of state documents.
	// Exactly one must be set.
	Flows    []string `yaml:"flows"`
	FlowsDir string   `yaml:"flows_dir"`

	Dialog    Dialog         `yaml:"dialog"`
	Storage   Storage        `yaml:"storage"`
	Scheduler string         `yaml:"scheduler"`
	HTTP      HTTP           `yaml:"http"`
	Extract   []extract.Rule `yaml:"extract"`
	Recorder  Recorder       `yaml:"recorder"`
}

// Dialog holds the engine settings.
type Dialog struct {
	Apology           string                   `yaml:"apology"`
	SchemaVersion     string                   `yaml:"schema_version"`
	IntentMaxAge      *int                     `yaml:"intent_max_age"`
	TurnTimeout       time.Duration            `yaml:"turn_timeout"`
	LogMessages       bool                     `yaml:"log_messages"`
	InactiveCallbacks map[string]time.Duration `yaml:"inactive_callbacks"`
}

// Storage selects and configures the session store.
type Storage struct {
	Driver string `yaml:"driver"`
	Redis  struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	// EncryptionKey is a base64 encoded 32-byte key. Encryption is off when empty.
	EncryptionKey string `yaml:"encryption_key"`

	// MaskEntities lists entity name patterns whose values are masked before persistence.
	MaskEntities []string `yaml:"mask_entities"`
}

// HTTP configures the HTTP adapter.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Recorder configures the test_record commands.
type Recorder struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads, expands and validates the configuration at path.
// ${VAR} placeholders are replaced by environment variables when those are set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load on an in-memory document.
func Parse(data []byte) (*Config, error) {
	expanded := envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		if value := os.Getenv(string(match[2 : len(match)-1])); value != "" {
			return []byte(value)
		}
		return match
	})

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "golem:"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "golem.db"
	}
	if c.Scheduler == "" {
		c.Scheduler = DriverMemory
		if c.Storage.Driver == DriverRedis {
			c.Scheduler = DriverRedis
		}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate reports the first inconsistency.
func (c *Config) Validate() error {
	if c.Flows != nil && c.FlowsDir != "" {
		return fmt.Errorf("flows and flows_dir are mutually exclusive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Scheduler {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown scheduler %q", c.Scheduler)
	}
	if c.Scheduler == DriverRedis && c.Storage.Driver != DriverRedis {
		return fmt.Errorf("the redis scheduler needs the redis storage driver")
	}
	if _, err := c.Storage.Key(); err != nil {
		return err
	}
	for name, d := range c.Dialog.InactiveCallbacks {
		if d <= 0 {
			return fmt.Errorf("inactive callback %s: duration must be positive", name)
		}
	}
	return nil
}

// Key decodes the encryption key. It returns nil when encryption is off.
func (s Storage) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Runtime converts the dialog section into engine settings.
func (c *Config) Runtime() runtime.Config {
	rc := runtime.DefaultConfig()
	if c.Dialog.Apology != "" {
		rc.ApologyText = c.Dialog.Apology
	}
	if c.Dialog.SchemaVersion != "" {
		rc.SchemaVersion = c.Dialog.SchemaVersion
	}
	if c.Dialog.IntentMaxAge != nil {
		rc.IntentMaxAge = *c.Dialog.IntentMaxAge
	}
	if c.Dialog.TurnTimeout > 0 {
		rc.TurnTimeout = c.Dialog.TurnTimeout
	}
	rc.LogMessages = c.Dialog.LogMessages
	rc.InactiveCallbacks = c.Dialog.InactiveCallbacks
	return rc
}

// IntentAge is a convenience for printing the effective intent age limit.
func (c *Config) IntentAge() string {
	age := c.Runtime().IntentMaxAge
	if age == domain.AnyAge {
		return "any"
	}
	return fmt.Sprint(age)
}
