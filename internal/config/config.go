package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/retrack/internal/audit"
	"github.com/marcelocantos/retrack/internal/catalog"
	"github.com/marcelocantos/retrack/internal/interp"
	"github.com/marcelocantos/retrack/internal/proc"
	"github.com/marcelocantos/retrack/internal/rules"
)

// Config holds the global retrack configuration.
type Config struct {
	Backend BackendConfig                      `yaml:"backend"`
	Exec    ExecConfig                         `yaml:"exec"`
	Tiers   TierConfig                         `yaml:"tiers"`
	Rules   map[string]rules.SubjectRuleConfig `yaml:"rules"`
	Audit   AuditConfig                        `yaml:"audit"`
	Log     LogConfig                          `yaml:"log"`
}

// BackendConfig locates the backend and its interpreter.
type BackendConfig struct {
	Root        string         `yaml:"root" env:"RETRACK_BACKEND_ROOT"`
	Module      string         `yaml:"module" env:"RETRACK_BACKEND_MODULE"`
	SystemNames []string       `yaml:"system_names"`
	Layouts     []LayoutConfig `yaml:"layouts"`
}

// LayoutConfig declares an extra bundled runtime layout, evaluated after
// the built-in ones.
type LayoutConfig struct {
	Name        string `yaml:"name"`
	Origin      string `yaml:"origin"`
	Interpreter string `yaml:"interpreter"`
	Runtime     string `yaml:"runtime"`
	BackendRoot string `yaml:"backend_root"`
}

// ExecConfig bounds backend processes.
type ExecConfig struct {
	Timeout      string `yaml:"timeout" env:"RETRACK_TIMEOUT"`
	ProbeTimeout string `yaml:"probe_timeout"`
}

// Defaults for ExecConfig.
const (
	DefaultTimeout      = 5 * time.Minute
	DefaultProbeTimeout = 10 * time.Second
)

// TimeoutDuration parses the configured call timeout or returns the
// default. "0" disables the default timeout.
func (e *ExecConfig) TimeoutDuration() time.Duration {
	return parseDuration(e.Timeout, DefaultTimeout)
}

// ProbeTimeoutDuration parses the configured probe timeout or returns the
// default.
func (e *ExecConfig) ProbeTimeoutDuration() time.Duration {
	return parseDuration(e.ProbeTimeout, DefaultProbeTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

// TierConfig controls which safety tiers are enabled.
type TierConfig struct {
	Read      bool `yaml:"read"`
	Write     bool `yaml:"write"`
	Dangerous bool `yaml:"dangerous"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Driver string `yaml:"driver" env:"RETRACK_AUDIT_DRIVER"`
	Path   string `yaml:"path" env:"RETRACK_AUDIT_PATH"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level string `yaml:"level" env:"RETRACK_LOG_LEVEL"`
	Path  string `yaml:"path" env:"RETRACK_LOG_PATH"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Root:   proc.DefaultFallbackDir,
			Module: proc.DefaultModule,
		},
		Tiers: TierConfig{
			Read:      true,
			Write:     true,
			Dangerous: true,
		},
		Audit: AuditConfig{
			Driver: audit.DriverJSONL,
			Path:   filepath.Join(DataDir(), "audit.jsonl"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config from the standard location. If the file doesn't
// exist, returns the default config with environment overrides applied.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}

	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.Log.Path = expandHome(cfg.Log.Path)
	cfg.Backend.Root = expandHome(cfg.Backend.Root)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings that would fail later at call time.
func (c *Config) Validate() error {
	var errs []error
	switch c.Audit.Driver {
	case audit.DriverJSONL, audit.DriverSQLite, audit.DriverNone, "":
	default:
		errs = append(errs, fmt.Errorf("audit.driver: unknown driver %q", c.Audit.Driver))
	}
	for _, d := range []struct{ name, val string }{
		{"exec.timeout", c.Exec.Timeout},
		{"exec.probe_timeout", c.Exec.ProbeTimeout},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	if _, err := c.Layouts(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Layouts returns the built-in bundled layouts for this OS followed by the
// configured extras.
func (c *Config) Layouts() ([]interp.Layout, error) {
	layouts := interp.DefaultLayouts(runtime.GOOS)
	for i, lc := range c.Backend.Layouts {
		origin, err := interp.ParseOrigin(lc.Origin)
		if err != nil {
			return nil, fmt.Errorf("backend.layouts[%d]: %w", i, err)
		}
		if !origin.Bundled() {
			return nil, fmt.Errorf("backend.layouts[%d]: origin must be bundled-windows or bundled-unix", i)
		}
		if lc.Interpreter == "" {
			return nil, fmt.Errorf("backend.layouts[%d]: interpreter is required", i)
		}
		name := lc.Name
		if name == "" {
			name = fmt.Sprintf("layout-%d", i)
		}
		backendRoot := lc.BackendRoot
		if backendRoot == "" {
			backendRoot = "."
		}
		layouts = append(layouts, interp.Layout{
			Name:        name,
			Origin:      origin,
			Interpreter: lc.Interpreter,
			Runtime:     lc.Runtime,
			BackendRoot: backendRoot,
		})
	}
	return layouts, nil
}

// SystemNames returns the configured system executable names or the
// defaults.
func (c *Config) SystemNames() []string {
	if len(c.Backend.SystemNames) > 0 {
		return c.Backend.SystemNames
	}
	return interp.DefaultSystemNames
}

// ApplyRules creates a RuleSet from the config and sets it on the registry.
// Hardcoded rules are always included; the default config rules apply when
// the config file declares none.
func (c *Config) ApplyRules(reg *catalog.Registry) {
	cfgRules := c.Rules
	if cfgRules == nil {
		cfgRules = rules.Defaults()
	}
	reg.SetRules(rules.Compile(cfgRules))
}

// ApplyTiers sets the registry tier permissions from the config.
func (c *Config) ApplyTiers(reg *catalog.Registry) {
	reg.SetTier(catalog.TierRead, c.Tiers.Read)
	reg.SetTier(catalog.TierWrite, c.Tiers.Write)
	reg.SetTier(catalog.TierDangerous, c.Tiers.Dangerous)
}

// Apply sets tiers and rules on reg.
func (c *Config) Apply(reg *catalog.Registry) {
	c.ApplyTiers(reg)
	c.ApplyRules(reg)
}

// Path returns the standard config file path, honouring XDG_CONFIG_HOME.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "retrack", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "retrack", "config.yaml")
}

// DataDir returns the directory for audit logs and other state. Prefers
// $XDG_DATA_HOME/retrack, falls back to ~/.local/share/retrack.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "retrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "retrack")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
