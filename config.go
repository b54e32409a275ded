package aauth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the deployment knobs of the engine. Everything has a safe
// default: super-admin bypass off, caching off, rule nesting capped at
// DefaultMaxRuleDepth.
type Config struct {
	SuperAdmin SuperAdminConfig `json:"super_admin" yaml:"super_admin"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	ABAC       ABACConfig       `json:"abac" yaml:"abac"`
}

// SuperAdminConfig controls the unconditional-allow bypass. Column names the
// boolean user flag consulted through the UserDirectory.
type SuperAdminConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Column  string `json:"column" yaml:"column"`
}

// CacheConfig controls the cross-session cache tier.
type CacheConfig struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Prefix               string `json:"prefix" yaml:"prefix"`
	TTLMillis            int64  `json:"ttl_ms" yaml:"ttl_ms"`
	RistrettoNumCounters int64  `json:"ristretto_num_counters" yaml:"ristretto_num_counters"`
	RistrettoMaxCost     int64  `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBufferItems int64  `json:"ristretto_buffer_items" yaml:"ristretto_buffer_items"`
}

// ABACConfig controls rule-tree validation.
type ABACConfig struct {
	MaxRuleDepth int `json:"max_rule_depth" yaml:"max_rule_depth"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		SuperAdmin: SuperAdminConfig{Enabled: false, Column: "is_super_admin"},
		Cache:      CacheConfig{Enabled: false, Prefix: "aauth", TTLMillis: 60_000},
		ABAC:       ABACConfig{MaxRuleDepth: DefaultMaxRuleDepth},
	}
}

// TTL is the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLMillis <= 0 {
		return time.Minute
	}
	return time.Duration(c.TTLMillis) * time.Millisecond
}

// ConfigLoader loads configuration from YAML or JSON.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile picks the decoder from the file extension (.yaml/.yml/.json).
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return l.LoadJSON(data)
	default:
		return l.LoadYAML(data)
	}
}

// ToYAML exports the config.
func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

// ToJSON exports the config.
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }
