// ABOUTME: Static directory mapping agent names to webhook URLs and system prompts
// ABOUTME: Resolved once at startup from configuration, read-only afterwards

package directory

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrUnknownAgent indicates a session or handoff named an agent that is not
// present in the directory.
var ErrUnknownAgent = errors.New("unknown agent")

// Endpoint describes one reachable agent.
type Endpoint struct {
	Name         string
	WebhookURL   string
	SystemPrompt string
}

// Directory is the read-only agent registry. Prompts are loaded once during
// construction and cached for the process lifetime.
type Directory struct {
	endpoints map[string]*Endpoint
}

// AgentConfig is the per-agent configuration shape the directory is built from.
type AgentConfig struct {
	WebhookURL string
	PromptPath string
}

// New builds a Directory from configured agents, reading each agent's system
// prompt file up front. An agent with no prompt_path gets an empty prompt.
func New(agents map[string]AgentConfig) (*Directory, error) {
	if len(agents) == 0 {
		return nil, errors.New("at least one agent must be configured")
	}

	endpoints := make(map[string]*Endpoint, len(agents))
	for name, ac := range agents {
		if ac.WebhookURL == "" {
			return nil, fmt.Errorf("agent %q: webhook_url is required", name)
		}
		prompt := ""
		if ac.PromptPath != "" {
			data, err := os.ReadFile(ac.PromptPath)
			if err != nil {
				return nil, fmt.Errorf("agent %q: reading prompt %s: %w", name, ac.PromptPath, err)
			}
			prompt = string(data)
		}
		endpoints[name] = &Endpoint{
			Name:         name,
			WebhookURL:   ac.WebhookURL,
			SystemPrompt: prompt,
		}
	}

	return &Directory{endpoints: endpoints}, nil
}

// Resolve returns the endpoint for an agent name.
// Returns ErrUnknownAgent if the name is not configured.
func (d *Directory) Resolve(name string) (*Endpoint, error) {
	ep, ok := d.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return ep, nil
}

// Names returns the configured agent names in sorted order.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.endpoints))
	for name := range d.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured agents.
func (d *Directory) Len() int {
	return len(d.endpoints)
}
