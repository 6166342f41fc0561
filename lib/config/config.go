// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/yai-labs/yai/lib/cortex"
	"github.com/yai-labs/yai/lib/gate/provider"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/vault"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "YAI_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the configuration shared by every yai binary.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths      PathsConfig      `yaml:"paths"`
	Logging    LoggingConfig    `yaml:"logging"`
	Control    ControlConfig    `yaml:"control"`
	Vault      VaultConfig      `yaml:"vault"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Engine     EngineConfig     `yaml:"engine"`
	Storage    StorageConfig    `yaml:"storage"`
	Provider   provider.Config  `yaml:"provider"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can differ per environment.
type Overrides struct {
	Paths    *PathsConfig     `yaml:"paths,omitempty"`
	Logging  *LoggingConfig   `yaml:"logging,omitempty"`
	Control  *ControlConfig   `yaml:"control,omitempty"`
	Provider *provider.Config `yaml:"provider,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Home roots the ~/.yai run tree.
	Home string `yaml:"home"`

	// ShmDir holds the Vault segments.
	ShmDir string `yaml:"shm_dir"`

	// Bin is searched before PATH for plane binaries.
	Bin string `yaml:"bin"`
}

// LoggingConfig configures lib/logging.
type LoggingConfig struct {
	Level string `yaml:"level"`

	// Format is auto, json, or text. Auto picks text on a terminal.
	Format string `yaml:"format"`

	// File also writes to the plane's log file under the run tree.
	File bool `yaml:"file"`

	// Journal also writes to the systemd journal.
	Journal bool `yaml:"journal"`
}

// ControlConfig configures the control sockets.
type ControlConfig struct {
	Backlog      int           `yaml:"backlog"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxPayload   int           `yaml:"max_payload"`

	// Mode is multi or oneshot.
	Mode string `yaml:"mode"`

	// Profile is strict or permissive.
	Profile string `yaml:"profile"`
}

// VaultConfig configures Vault segments.
type VaultConfig struct {
	EnergyQuota uint32   `yaml:"energy_quota"`
	Channels    []string `yaml:"channels"`
}

// SessionsConfig configures the session registry.
type SessionsConfig struct {
	Capacity int `yaml:"capacity"`
}

// SupervisorConfig configures yai-boot.
type SupervisorConfig struct {
	// Restart is always, on-failure, or never.
	Restart        string        `yaml:"restart"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	// MaxRestarts within Window before a plane is given up on.
	MaxRestarts int           `yaml:"max_restarts"`
	Window      time.Duration `yaml:"window"`

	// Planes lists the planes to spawn, in start order.
	Planes []string `yaml:"planes"`
}

// EngineConfig configures yai-engine.
type EngineConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	InitialTarget int           `yaml:"initial_target"`
	Cortex        cortex.Config `yaml:"cortex"`
}

// StorageConfig configures the storage gate.
type StorageConfig struct {
	MaxOpen  int `yaml:"max_open"`
	PoolSize int `yaml:"pool_size"`
}

// Default returns the configuration used when no file is given, and
// the base that a file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Home:   "${HOME}",
			ShmDir: vault.DefaultDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
			File:   true,
		},
		Control: ControlConfig{
			Backlog:      16,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxPayload:   64 * 1024,
			Mode:         "multi",
			Profile:      "strict",
		},
		Vault: VaultConfig{
			EnergyQuota: vault.DefaultEnergyQuota,
			Channels:    append([]string(nil), vault.Channels...),
		},
		Sessions: SessionsConfig{Capacity: 32},
		Supervisor: SupervisorConfig{
			Restart:        "on-failure",
			BackoffInitial: 200 * time.Millisecond,
			BackoffMax:     10 * time.Second,
			MaxRestarts:    5,
			Window:         time.Minute,
			Planes:         []string{runpath.PlaneRoot, runpath.PlaneKernel},
		},
		Engine: EngineConfig{
			PollInterval:  50 * time.Millisecond,
			InitialTarget: 1,
			Cortex:        cortex.DefaultConfig(),
		},
		Storage:  StorageConfig{MaxOpen: 16, PoolSize: 4},
		Provider: provider.DefaultConfig(),
	}
}

// Load loads the file named by YAI_CONFIG. It fails when the variable
// is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your yai.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// Resolve picks the config for a binary: flagPath when set, else
// YAI_CONFIG, else the defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from path. The file is checked against
// the embedded schema, merged over Default, the environment section
// applied, and ${VAR} references in paths expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := CheckSchema(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

//go:embed schema.cue
var schemaSource string

// CheckSchema validates raw YAML against the embedded CUE schema.
func CheckSchema(data []byte) error {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	if document == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	definition := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(document)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := definition.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no mock provider, and unknown commands
		// are refused.
		if overrides == nil {
			overrides = &Overrides{
				Control:  &ControlConfig{Profile: "strict"},
				Provider: &provider.Config{Mock: false},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Home != "" {
			c.Paths.Home = overrides.Paths.Home
		}
		if overrides.Paths.ShmDir != "" {
			c.Paths.ShmDir = overrides.Paths.ShmDir
		}
		if overrides.Paths.Bin != "" {
			c.Paths.Bin = overrides.Paths.Bin
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
		// Booleans always apply from an override section.
		c.Logging.File = overrides.Logging.File
		c.Logging.Journal = overrides.Logging.Journal
	}

	if overrides.Control != nil {
		if overrides.Control.Backlog != 0 {
			c.Control.Backlog = overrides.Control.Backlog
		}
		if overrides.Control.ReadTimeout != 0 {
			c.Control.ReadTimeout = overrides.Control.ReadTimeout
		}
		if overrides.Control.WriteTimeout != 0 {
			c.Control.WriteTimeout = overrides.Control.WriteTimeout
		}
		if overrides.Control.MaxPayload != 0 {
			c.Control.MaxPayload = overrides.Control.MaxPayload
		}
		if overrides.Control.Mode != "" {
			c.Control.Mode = overrides.Control.Mode
		}
		if overrides.Control.Profile != "" {
			c.Control.Profile = overrides.Control.Profile
		}
	}

	if overrides.Provider != nil {
		if overrides.Provider.ID != "" {
			c.Provider.ID = overrides.Provider.ID
		}
		if overrides.Provider.BaseURL != "" {
			c.Provider.BaseURL = overrides.Provider.BaseURL
		}
		if overrides.Provider.Endpoint != "" {
			c.Provider.Endpoint = overrides.Provider.Endpoint
		}
		if overrides.Provider.EmbeddingEndpoint != "" {
			c.Provider.EmbeddingEndpoint = overrides.Provider.EmbeddingEndpoint
		}
		if overrides.Provider.APIKeyEnv != "" {
			c.Provider.APIKeyEnv = overrides.Provider.APIKeyEnv
		}
		if overrides.Provider.Timeout != 0 {
			c.Provider.Timeout = overrides.Provider.Timeout
		}
		c.Provider.Mock = overrides.Provider.Mock
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Home = expandVars(c.Paths.Home, vars)
	vars["YAI_HOME"] = c.Paths.Home

	c.Paths.ShmDir = expandVars(c.Paths.ShmDir, vars)
	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Home == "" {
		errs = append(errs, errors.New("paths.home is required"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Vault.EnergyQuota == 0 {
		errs = append(errs, errors.New("vault.energy_quota must be positive"))
	}
	if c.Sessions.Capacity <= 0 {
		errs = append(errs, errors.New("sessions.capacity must be positive"))
	}
	if c.Control.MaxPayload <= 0 || c.Control.MaxPayload > 64*1024 {
		errs = append(errs, errors.New("control.max_payload must be in (0, 65536]"))
	}
	if c.Supervisor.BackoffMax < c.Supervisor.BackoffInitial {
		errs = append(errs, errors.New("supervisor.backoff_max must not be below backoff_initial"))
	}
	if err := c.Engine.Cortex.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine.cortex: %w", err))
	}
	if c.Engine.InitialTarget < c.Engine.Cortex.MinTarget || c.Engine.InitialTarget > c.Engine.Cortex.MaxTarget {
		errs = append(errs, fmt.Errorf("engine.initial_target %d outside [%d, %d]",
			c.Engine.InitialTarget, c.Engine.Cortex.MinTarget, c.Engine.Cortex.MaxTarget))
	}

	return errors.Join(errs...)
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Layout returns the run tree rooted at Paths.Home.
func (c *Config) Layout() runpath.Layout {
	return runpath.Layout{Home: c.Paths.Home}
}

// EnsurePaths creates the run tree.
func (c *Config) EnsurePaths() error {
	return runpath.Ensure(c.Layout().RunDir())
}

// BinaryPath returns the full path to a yai binary. It looks in
// Paths.Bin first, then falls back to exec.LookPath.
func (c *Config) BinaryPath(name string) (string, error) {
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
