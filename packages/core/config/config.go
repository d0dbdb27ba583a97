package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/snapcap/packages/core/env"
)

// Config is the process-wide capture configuration. Every field can be
// overridden per wrapped function; these are only the inherited defaults.
// A loaded Config is treated as immutable: it is constructed once at
// startup and passed by reference into the interceptor factory.
type Config struct {
	Enabled         *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path            string   `json:"path,omitempty" yaml:"path,omitempty"`
	Retention       int      `json:"retention,omitempty" yaml:"retention,omitempty"`
	Mode            string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	IgnoreArgs      []string `json:"ignoreArgs,omitempty" yaml:"ignoreArgs,omitempty"`
	MaxValueSize    int      `json:"maxValueSize,omitempty" yaml:"maxValueSize,omitempty"`
	Backend         string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	FallbackEnabled *bool    `json:"fallbackEnabled,omitempty" yaml:"fallbackEnabled,omitempty"`
	Minimal         *bool    `json:"minimal,omitempty" yaml:"minimal,omitempty"`
	CaptureReturns  *bool    `json:"captureReturns,omitempty" yaml:"captureReturns,omitempty"`
	ThrottleRate    float64  `json:"throttleRate,omitempty" yaml:"throttleRate,omitempty"`
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetEnabled returns the enabled setting, defaulting to true.
func (c *Config) GetEnabled() bool {
	return getBool(c.Enabled, true)
}

// GetFallbackEnabled returns the fallback setting, defaulting to true.
func (c *Config) GetFallbackEnabled() bool {
	return getBool(c.FallbackEnabled, true)
}

// GetMinimal returns the minimal-capture setting, defaulting to false.
func (c *Config) GetMinimal() bool {
	return getBool(c.Minimal, false)
}

// GetCaptureReturns returns the return-capture setting, defaulting to false.
func (c *Config) GetCaptureReturns() bool {
	return getBool(c.CaptureReturns, false)
}

// ConfigFilenames contains the possible config file names, checked in
// order.
var ConfigFilenames = []string{
	".snapcap.config.json",
	"snapcap.config.json",
	".snapcaprc",
	".snapcap.yaml",
	"snapcap.yaml",
}

// LoadConfig loads configuration from the specified path, or searches the
// current directory when path is empty. A .env file in the working
// directory is exported first, then environment variables are applied on
// top of whatever the config file provides.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_, _ = env.LoadAndExportDotEnv(".env")
	}

	var cfg *Config
	var err error

	if path != "" {
		cfg, err = loadConfigFromFile(path)
	} else {
		cfg, err = FindAndLoadConfig(".")
	}
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// FindAndLoadConfig searches for a config file in the given directory and
// falls back to defaults when none exists.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variable names. Every configuration option has one so
// deployments can change capture behavior without code changes.
const (
	EnvEnabled         = "SNAPCAP_ENABLED"
	EnvPath            = "SNAPCAP_PATH"
	EnvRetention       = "SNAPCAP_RETENTION"
	EnvMode            = "SNAPCAP_MODE"
	EnvIgnoreArgs      = "SNAPCAP_IGNORE_ARGS"
	EnvMaxValueSize    = "SNAPCAP_MAX_VALUE_SIZE"
	EnvBackend         = "SNAPCAP_BACKEND"
	EnvFallbackEnabled = "SNAPCAP_FALLBACK_ENABLED"
	EnvMinimal         = "SNAPCAP_MINIMAL"
	EnvCaptureReturns  = "SNAPCAP_CAPTURE_RETURNS"
	EnvThrottleRate    = "SNAPCAP_THROTTLE_RATE"
)

// applyEnv overrides config fields from SNAPCAP_* environment variables.
func (c *Config) applyEnv() {
	if v, ok := envBool(EnvEnabled); ok {
		c.Enabled = BoolPtr(v)
	}
	if v := os.Getenv(EnvPath); v != "" {
		c.Path = v
	}
	if v, ok := envInt(EnvRetention); ok {
		c.Retention = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = v
	}
	if v := os.Getenv(EnvIgnoreArgs); v != "" {
		c.IgnoreArgs = splitList(v)
	}
	if v, ok := envInt(EnvMaxValueSize); ok {
		c.MaxValueSize = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v, ok := envBool(EnvFallbackEnabled); ok {
		c.FallbackEnabled = BoolPtr(v)
	}
	if v, ok := envBool(EnvMinimal); ok {
		c.Minimal = BoolPtr(v)
	}
	if v, ok := envBool(EnvCaptureReturns); ok {
		c.CaptureReturns = BoolPtr(v)
	}
	if v := os.Getenv(EnvThrottleRate); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ThrottleRate = f
		}
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true") || v == "1", true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// configSchema validates the JSON shape of a Config.
const configSchema = `{
  "type": "object",
  "properties": {
    "enabled": {"type": "boolean"},
    "path": {"type": "string"},
    "retention": {"type": "integer", "minimum": 1},
    "mode": {"enum": ["fill-and-stop", "sliding-window"]},
    "ignoreArgs": {"type": "array", "items": {"type": "string"}},
    "maxValueSize": {"type": "integer", "minimum": 0},
    "backend": {"enum": ["gob", "json"]},
    "fallbackEnabled": {"type": "boolean"},
    "minimal": {"type": "boolean"},
    "captureReturns": {"type": "boolean"},
    "throttleRate": {"type": "number", "minimum": 0}
  },
  "additionalProperties": false
}`

// Validate checks the config against its schema and returns one error per
// violation, joined.
func (c *Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("cannot validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
