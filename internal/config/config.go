// ABOUTME: Configuration loading and parsing for carebridge
// ABOUTME: YAML files with env var expansion, duration parsing, and CAREBRIDGE_* overrides

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Run modes select which HTTP surface the gateway exposes.
const (
	ModeInteractive = "interactive"
	ModeMultiHop    = "multihop"
	ModeEval        = "eval"
	ModeAll         = "all"
)

// Config represents the complete carebridge configuration
type Config struct {
	Mode        string            `yaml:"mode"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	FHIR        FHIRConfig        `yaml:"fhir"`
	Agents      AgentsConfig      `yaml:"agents"`
	Interactive InteractiveConfig `yaml:"interactive"`
	MultiHop    MultiHopConfig    `yaml:"multihop"`
	Eval        EvalConfig        `yaml:"eval"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds conversation history storage configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FHIRConfig holds the external clinical resource server location, which is
// forwarded to agents in every request envelope. The gateway itself never
// calls it.
type FHIRConfig struct {
	BaseURL string `yaml:"base_url"`
}

// AgentConfig holds one agent's webhook and prompt source
type AgentConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	PromptPath string `yaml:"prompt_path"`
}

// AgentsConfig holds the agent directory and the default entry agent
type AgentsConfig struct {
	EntryAgent string                 `yaml:"entry_agent"`
	Directory  map[string]AgentConfig `yaml:"directory"`
}

// InteractiveConfig holds single-hop routing configuration
type InteractiveConfig struct {
	CallTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CallTimeoutRaw string `yaml:"call_timeout"`
}

// MultiHopConfig holds the handoff loop configuration
type MultiHopConfig struct {
	MaxSteps    int           `yaml:"max_steps"`
	Initiator   string        `yaml:"initiator"`
	StartToken  string        `yaml:"start_token"`
	CallTimeout time.Duration `yaml:"-"`

	CallTimeoutRaw string `yaml:"call_timeout"`
}

// EvalConfig holds the evaluation passthrough configuration
type EvalConfig struct {
	Agent   string        `yaml:"agent"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// envOverrides maps CAREBRIDGE_* environment variables onto config fields so
// harness scripts can reconfigure the gateway without editing the YAML file.
type envOverrides struct {
	Mode        string        `env:"CAREBRIDGE_MODE"`
	HTTPAddr    string        `env:"CAREBRIDGE_HTTP_ADDR"`
	DBPath      string        `env:"CAREBRIDGE_DB_PATH"`
	FHIRBaseURL string        `env:"CAREBRIDGE_FHIR_BASE_URL"`
	EntryAgent  string        `env:"CAREBRIDGE_ENTRY_AGENT"`
	MaxSteps    int           `env:"CAREBRIDGE_MAX_STEPS"`
	CallTimeout time.Duration `env:"CAREBRIDGE_CALL_TIMEOUT"`
	EvalAgent   string        `env:"CAREBRIDGE_EVAL_AGENT"`
	EvalTimeout time.Duration `env:"CAREBRIDGE_EVAL_TIMEOUT"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded,
// duration strings are parsed, defaults applied, and CAREBRIDGE_* environment
// overrides take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML content. Split out from Load so tests
// can feed content directly.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset optional fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeAll
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "localhost:8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = ":memory:"
	}
	if c.Interactive.CallTimeout == 0 {
		c.Interactive.CallTimeout = 15 * time.Second
	}
	if c.MultiHop.MaxSteps == 0 {
		c.MultiHop.MaxSteps = 10
	}
	if c.MultiHop.Initiator == "" {
		c.MultiHop.Initiator = "user"
	}
	if c.MultiHop.StartToken == "" {
		c.MultiHop.StartToken = "start"
	}
	if c.MultiHop.CallTimeout == 0 {
		c.MultiHop.CallTimeout = 30 * time.Second
	}
	if c.Eval.Timeout == 0 {
		c.Eval.Timeout = 30 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnvOverrides overlays CAREBRIDGE_* environment variables on top of the
// file-derived values.
func (c *Config) applyEnvOverrides() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}

	if ov.Mode != "" {
		c.Mode = ov.Mode
	}
	if ov.HTTPAddr != "" {
		c.Server.HTTPAddr = ov.HTTPAddr
	}
	if ov.DBPath != "" {
		c.Database.Path = ov.DBPath
	}
	if ov.FHIRBaseURL != "" {
		c.FHIR.BaseURL = ov.FHIRBaseURL
	}
	if ov.EntryAgent != "" {
		c.Agents.EntryAgent = ov.EntryAgent
	}
	if ov.MaxSteps > 0 {
		c.MultiHop.MaxSteps = ov.MaxSteps
	}
	if ov.CallTimeout > 0 {
		c.Interactive.CallTimeout = ov.CallTimeout
		c.MultiHop.CallTimeout = ov.CallTimeout
	}
	if ov.EvalAgent != "" {
		c.Eval.Agent = ov.EvalAgent
	}
	if ov.EvalTimeout > 0 {
		c.Eval.Timeout = ov.EvalTimeout
	}
	return nil
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeInteractive, ModeMultiHop, ModeEval, ModeAll:
	default:
		return fmt.Errorf("mode must be one of interactive, multihop, eval, all (got %q)", c.Mode)
	}

	if len(c.Agents.Directory) == 0 {
		return fmt.Errorf("agents.directory must name at least one agent")
	}

	if c.Agents.EntryAgent == "" {
		return fmt.Errorf("agents.entry_agent is required")
	}
	if _, ok := c.Agents.Directory[c.Agents.EntryAgent]; !ok {
		return fmt.Errorf("agents.entry_agent %q is not in agents.directory", c.Agents.EntryAgent)
	}

	for name, ac := range c.Agents.Directory {
		if ac.WebhookURL == "" {
			return fmt.Errorf("agents.directory.%s.webhook_url is required", name)
		}
	}

	if c.MultiHop.MaxSteps < 1 {
		return fmt.Errorf("multihop.max_steps must be at least 1")
	}

	if c.Eval.Agent != "" {
		if _, ok := c.Agents.Directory[c.Eval.Agent]; !ok {
			return fmt.Errorf("eval.agent %q is not in agents.directory", c.Eval.Agent)
		}
	} else if c.Mode == ModeEval {
		return fmt.Errorf("eval.agent is required in eval mode")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Interactive.CallTimeoutRaw != "" {
		cfg.Interactive.CallTimeout, err = time.ParseDuration(cfg.Interactive.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing interactive.call_timeout %q: %w", cfg.Interactive.CallTimeoutRaw, err)
		}
	}

	if cfg.MultiHop.CallTimeoutRaw != "" {
		cfg.MultiHop.CallTimeout, err = time.ParseDuration(cfg.MultiHop.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing multihop.call_timeout %q: %w", cfg.MultiHop.CallTimeoutRaw, err)
		}
	}

	if cfg.Eval.TimeoutRaw != "" {
		cfg.Eval.Timeout, err = time.ParseDuration(cfg.Eval.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing eval.timeout %q: %w", cfg.Eval.TimeoutRaw, err)
		}
	}

	return nil
}
