// Package agent routes named agents to configured LLM providers.
package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/phuslu/log"
	"gopkg.in/yaml.v2"

	"deal_valuation/pkg/core/llm"
	"deal_valuation/pkg/core/logging"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider" json:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents" json:"agents"`
}

type AgentConfig struct {
	Provider    string  `yaml:"provider" json:"provider,omitempty"` // Optional override
	Model       string  `yaml:"model" json:"model,omitempty"`
	Temperature float64 `yaml:"temperature" json:"temperature,omitempty"`
	Description string  `yaml:"description" json:"description,omitempty"`
}

// LoadConfig reads agent routing from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read agent config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	return cfg, nil
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	logger    *log.Logger
}

func NewManager(config Config, providers map[string]llm.Provider, logger *log.Logger) *Manager {
	if providers == nil {
		providers = map[string]llm.Provider{}
	}
	return &Manager{
		config:    config,
		providers: providers,
		logger:    logging.Component(logger, "agent"),
	}
}

// GetProvider resolves the provider for an agent: agent override first, then
// the global active provider.
func (m *Manager) GetProvider(agentType string) (llm.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ac, ok := m.config.Agents[agentType]; ok && ac.Provider != "" {
		if p, ok := m.providers[ac.Provider]; ok {
			return p, nil
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no provider available for agent %q (active %q)", agentType, m.config.ActiveProvider)
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "gemini")
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// ExecutePrompt handles instruction adaptation before sending to the model.
// Agent-level model and temperature settings are applied unless options set them.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider, err := m.GetProvider(agentType)
	if err != nil {
		return "", err
	}

	merged := make(map[string]interface{}, len(options)+2)
	m.mu.RLock()
	if ac, ok := m.config.Agents[agentType]; ok {
		if ac.Model != "" {
			merged["model"] = ac.Model
		}
		if ac.Temperature != 0 {
			merged["temperature"] = ac.Temperature
		}
	}
	m.mu.RUnlock()
	for k, v := range options {
		merged[k] = v
	}

	m.logger.Debug().Str("agent", agentType).Str("provider", fmt.Sprintf("%T", provider)).Msg("executing prompt")
	return provider.GenerateResponse(ctx, rawPrompt, provider.AdaptInstructions(rawSystemPrompt), merged)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.logger.Info().Str("provider", newProvider).Msg("global provider switched")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Providers lists registered provider names, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for k := range m.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Config returns a copy of the routing configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Config{ActiveProvider: m.config.ActiveProvider, Agents: make(map[string]AgentConfig, len(m.config.Agents))}
	for k, v := range m.config.Agents {
		out.Agents[k] = v
	}
	return out
}
