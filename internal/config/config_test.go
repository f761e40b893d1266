package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.MaxFlagCount != 32 || c.ListLimitDefault != 1000 || c.ListLimitHardCap != 100000 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canonkv.yaml")
	if err := os.WriteFile(path, []byte("list_limit_default: 50\nhttp_addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListLimitDefault != 50 {
		t.Fatalf("ListLimitDefault = %d, want 50", c.ListLimitDefault)
	}
	if c.HTTPAddr != ":9000" {
		t.Fatalf("HTTPAddr = %q, want :9000", c.HTTPAddr)
	}
	if c.MaxFlagCount != 32 {
		t.Fatalf("MaxFlagCount should keep default 32, got %d", c.MaxFlagCount)
	}
}

func TestEffectiveListLimit(t *testing.T) {
	c := Default()
	if got := c.EffectiveListLimit(0); got != c.ListLimitDefault {
		t.Fatalf("EffectiveListLimit(0) = %d, want %d", got, c.ListLimitDefault)
	}
	if got := c.EffectiveListLimit(c.ListLimitHardCap + 1000); got != c.ListLimitHardCap {
		t.Fatalf("EffectiveListLimit(over cap) = %d, want %d", got, c.ListLimitHardCap)
	}
	if got := c.EffectiveListLimit(5); got != 5 {
		t.Fatalf("EffectiveListLimit(5) = %d, want 5", got)
	}
}
