// ABOUTME: Tests for carebridge configuration parsing
// ABOUTME: Covers YAML parsing, defaults, env expansion, overrides, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
mode: "all"
server:
  http_addr: "localhost:9090"
database:
  path: ":memory:"
fhir:
  base_url: "http://localhost:8103/fhir/R4"
agents:
  entry_agent: "frontdesk_agent"
  directory:
    frontdesk_agent:
      webhook_url: "http://localhost:5678/webhook/frontdesk"
    scheduling_agent:
      webhook_url: "http://localhost:5678/webhook/scheduling"
multihop:
  max_steps: 5
  call_timeout: "10s"
eval:
  agent: "scheduling_agent"
  timeout: "20s"
`

func TestParse_ValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, "localhost:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "http://localhost:8103/fhir/R4", cfg.FHIR.BaseURL)
	assert.Equal(t, "frontdesk_agent", cfg.Agents.EntryAgent)
	assert.Len(t, cfg.Agents.Directory, 2)
	assert.Equal(t, 5, cfg.MultiHop.MaxSteps)
	assert.Equal(t, 10*time.Second, cfg.MultiHop.CallTimeout)
	assert.Equal(t, 20*time.Second, cfg.Eval.Timeout)
}

func TestParse_Defaults(t *testing.T) {
	minimal := `
agents:
  entry_agent: "frontdesk_agent"
  directory:
    frontdesk_agent:
      webhook_url: "http://localhost:5678/webhook/frontdesk"
`
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 15*time.Second, cfg.Interactive.CallTimeout)
	assert.Equal(t, 10, cfg.MultiHop.MaxSteps)
	assert.Equal(t, "user", cfg.MultiHop.Initiator)
	assert.Equal(t, "start", cfg.MultiHop.StartToken)
	assert.Equal(t, 30*time.Second, cfg.MultiHop.CallTimeout)
	assert.Equal(t, 30*time.Second, cfg.Eval.Timeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_FRONTDESK_URL", "http://agents.example.org/frontdesk")

	content := `
agents:
  entry_agent: "frontdesk_agent"
  directory:
    frontdesk_agent:
      webhook_url: "${TEST_FRONTDESK_URL}"
`
	cfg, err := Parse([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "http://agents.example.org/frontdesk", cfg.Agents.Directory["frontdesk_agent"].WebhookURL)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("CAREBRIDGE_MODE", "multihop")
	t.Setenv("CAREBRIDGE_HTTP_ADDR", "0.0.0.0:7000")
	t.Setenv("CAREBRIDGE_MAX_STEPS", "3")
	t.Setenv("CAREBRIDGE_CALL_TIMEOUT", "5s")

	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, ModeMultiHop, cfg.Mode)
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.HTTPAddr)
	assert.Equal(t, 3, cfg.MultiHop.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.MultiHop.CallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Interactive.CallTimeout)
}

func TestParse_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad mode",
			content: "mode: \"streaming\"\nagents:\n  entry_agent: a\n  directory:\n    a:\n      webhook_url: http://x\n",
			wantErr: "mode must be one of",
		},
		{
			name:    "no agents",
			content: "mode: \"all\"\n",
			wantErr: "agents.directory",
		},
		{
			name:    "entry agent not in directory",
			content: "agents:\n  entry_agent: missing\n  directory:\n    a:\n      webhook_url: http://x\n",
			wantErr: "entry_agent",
		},
		{
			name:    "agent missing webhook url",
			content: "agents:\n  entry_agent: a\n  directory:\n    a: {}\n",
			wantErr: "webhook_url",
		},
		{
			name:    "eval mode without eval agent",
			content: "mode: \"eval\"\nagents:\n  entry_agent: a\n  directory:\n    a:\n      webhook_url: http://x\n",
			wantErr: "eval.agent",
		},
		{
			name:    "bad duration",
			content: "agents:\n  entry_agent: a\n  directory:\n    a:\n      webhook_url: http://x\nmultihop:\n  call_timeout: \"soon\"\n",
			wantErr: "parsing durations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "carebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "frontdesk_agent", cfg.Agents.EntryAgent)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/carebridge.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
