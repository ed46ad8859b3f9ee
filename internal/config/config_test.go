package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/marcelocantos/retrack/internal/catalog"
	"github.com/marcelocantos/retrack/internal/interp"
	"github.com/marcelocantos/retrack/internal/rules"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Root != "../backend" || cfg.Backend.Module != "src.cli" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if !cfg.Tiers.Read || !cfg.Tiers.Write || !cfg.Tiers.Dangerous {
		t.Errorf("tiers = %+v", cfg.Tiers)
	}
	if cfg.Exec.TimeoutDuration() != DefaultTimeout {
		t.Errorf("timeout = %v", cfg.Exec.TimeoutDuration())
	}
	if cfg.Audit.Driver != "jsonl" || !strings.HasSuffix(cfg.Audit.Path, "audit.jsonl") {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if !slices.Equal(cfg.SystemNames(), []string{"python", "python3", "py"}) {
		t.Errorf("system names = %v", cfg.SystemNames())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  root: /opt/retrack/backend
  module: app.cli
  system_names: [python3.12, python3]
  layouts:
    - name: embedded
      origin: bundled-unix
      interpreter: runtime/bin/python3
      runtime: runtime
      backend_root: app
exec:
  timeout: 30s
  probe_timeout: 2s
tiers:
  dangerous: false
rules:
  room:
    verbs:
      delete:
        reject_flags: [--force]
audit:
  driver: sqlite
  path: ~/retrack/audit.db
log:
  level: debug
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Root != "/opt/retrack/backend" || cfg.Backend.Module != "app.cli" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Exec.TimeoutDuration() != 30*time.Second || cfg.Exec.ProbeTimeoutDuration() != 2*time.Second {
		t.Errorf("exec = %+v", cfg.Exec)
	}
	if !cfg.Tiers.Read || !cfg.Tiers.Write || cfg.Tiers.Dangerous {
		t.Errorf("tiers = %+v (unset tiers should keep defaults)", cfg.Tiers)
	}
	home, _ := os.UserHomeDir()
	if cfg.Audit.Path != filepath.Join(home, "retrack", "audit.db") {
		t.Errorf("audit path = %q", cfg.Audit.Path)
	}
	if !slices.Equal(cfg.SystemNames(), []string{"python3.12", "python3"}) {
		t.Errorf("system names = %v", cfg.SystemNames())
	}

	layouts, err := cfg.Layouts()
	if err != nil {
		t.Fatal(err)
	}
	last := layouts[len(layouts)-1]
	want := interp.Layout{Name: "embedded", Origin: interp.OriginBundledUnix, Interpreter: "runtime/bin/python3", Runtime: "runtime", BackendRoot: "app"}
	if last != want {
		t.Errorf("custom layout = %+v, want %+v", last, want)
	}
	if len(layouts) != 3 {
		t.Errorf("expected 2 built-in layouts plus 1, got %d", len(layouts))
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "backend:\n  root: /from/file\nexec:\n  timeout: 1m\n")
	t.Setenv("RETRACK_BACKEND_ROOT", "/from/env")
	t.Setenv("RETRACK_TIMEOUT", "5s")
	t.Setenv("RETRACK_LOG_LEVEL", "warn")
	t.Setenv("RETRACK_AUDIT_DRIVER", "none")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Root != "/from/env" {
		t.Errorf("root = %q", cfg.Backend.Root)
	}
	if cfg.Exec.TimeoutDuration() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Exec.TimeoutDuration())
	}
	if cfg.Log.Level != "warn" || cfg.Audit.Driver != "none" {
		t.Errorf("log = %+v audit = %+v", cfg.Log, cfg.Audit)
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "backend: [\n"},
		{"bad driver", "audit:\n  driver: postgres\n"},
		{"bad timeout", "exec:\n  timeout: soon\n"},
		{"bad origin", "backend:\n  layouts:\n    - origin: conda\n      interpreter: bin/python\n"},
		{"system layout", "backend:\n  layouts:\n    - origin: system\n      interpreter: python\n"},
		{"no interpreter", "backend:\n  layouts:\n    - origin: bundled-unix\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFrom(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers.Write = false
	reg := catalog.NewRegistry()
	cfg.Apply(reg)

	if err := reg.CheckTier(catalog.TierWrite); err == nil {
		t.Error("write tier should be disabled")
	}
	if err := reg.CheckTier(catalog.TierDangerous); err != nil {
		t.Errorf("dangerous tier: %v", err)
	}
	// Default rules: forced project deletion needs retry.
	if _, err := reg.Authorize(catalog.DeleteProject(1, true), false); err == nil {
		t.Error("default rule did not apply")
	}

	cfg.Rules = map[string]rules.SubjectRuleConfig{}
	cfg.ApplyRules(reg)
	if _, err := reg.Authorize(catalog.DeleteProject(1, true), false); err != nil {
		t.Errorf("empty rules should drop defaults: %v", err)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.FromSlash("/x/config"))
	t.Setenv("XDG_DATA_HOME", filepath.FromSlash("/x/data"))
	if got := Path(); got != filepath.FromSlash("/x/config/retrack/config.yaml") {
		t.Errorf("Path() = %q", got)
	}
	if got := DataDir(); got != filepath.FromSlash("/x/data/retrack") {
		t.Errorf("DataDir() = %q", got)
	}
}
