package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/schulte/internal/model"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Test.TableSize != nil || cfg.Stats.CurveWindow != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigAppliesValues(t *testing.T) {
	path := writeConfig(t, `
[test]
table-size = 4
sequence = "random"
shuffle = true
subject = "abc"

[stats]
curve-window = 3
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Test.Subject == nil || *cfg.Test.Subject != "abc" {
		t.Fatalf("unexpected subject: %+v", cfg.Test.Subject)
	}
	if cfg.Stats.CurveWindow == nil || *cfg.Stats.CurveWindow != 3 {
		t.Fatalf("unexpected curve window")
	}
	got := cfg.Test.Apply(model.DefaultConfiguration())
	want := model.TestConfiguration{TableSize: 4, SequenceType: model.SequenceRandom, ShuffleAfterEachStep: true}
	if got != want {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "[test]\nshuffle = true\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	got := cfg.Test.Apply(model.DefaultConfiguration())
	if got.TableSize != 5 || got.SequenceType != model.SequenceAscending || !got.ShuffleAfterEachStep {
		t.Fatalf("unexpected merged config: %+v", got)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := writeConfig(t, "[test]\nsequence = \"spiral\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown sequence")
	}
	path = writeConfig(t, "[test]\ntable-sise = 4\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "table-sise") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(DBPathEnv, "")
	if got := DefaultConfigPath(); got != filepath.Join(dir, "cfg", "schulte", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join(dir, "data", "schulte", "schulte.db") {
		t.Fatalf("unexpected db path %s", got)
	}

	override := filepath.Join(dir, "elsewhere.db")
	t.Setenv(DBPathEnv, override)
	if got := DefaultDBPath(); got != override {
		t.Fatalf("expected %s override, got %s", DBPathEnv, got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
