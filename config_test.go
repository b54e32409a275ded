package aauth

import (
	"testing"
	"time"
)

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	raw := []byte(`
super_admin:
  enabled: true
  column: is_root
cache:
  enabled: true
  prefix: myapp
  ttl_ms: 5000
abac:
  max_rule_depth: 4
`)
	cfg, err := NewConfigLoader().LoadYAML(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.SuperAdmin.Enabled || cfg.SuperAdmin.Column != "is_root" {
		t.Fatalf("super admin = %+v", cfg.SuperAdmin)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Prefix != "myapp" {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.TTL() != 5*time.Second {
		t.Fatalf("ttl = %v", cfg.Cache.TTL())
	}
	if cfg.ABAC.MaxRuleDepth != 4 {
		t.Fatalf("max depth = %d", cfg.ABAC.MaxRuleDepth)
	}
}

func TestLoadJSONKeepsUnsetDefaults(t *testing.T) {
	cfg, err := NewConfigLoader().LoadJSON([]byte(`{"cache": {"enabled": true}}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SuperAdmin.Column != "is_super_admin" {
		t.Fatalf("column default lost: %q", cfg.SuperAdmin.Column)
	}
	if cfg.Cache.Prefix != "aauth" {
		t.Fatalf("prefix default lost: %q", cfg.Cache.Prefix)
	}
	if !cfg.Cache.Enabled {
		t.Fatalf("override lost")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = true

	raw, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("to yaml: %v", err)
	}
	back, err := NewConfigLoader().LoadYAML(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *back != cfg {
		t.Fatalf("round trip changed config: %+v", back)
	}
}
