package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal_valuation/pkg/core/llm"
)

func named(name string, seen *map[string]interface{}) llm.Provider {
	return llm.ProviderFunc(func(_ context.Context, _, _ string, opts map[string]interface{}) (string, error) {
		*seen = opts
		return name, nil
	})
}

func TestManager_Routing(t *testing.T) {
	var opts map[string]interface{}
	m := NewManager(Config{
		ActiveProvider: "deepseek",
		Agents: map[string]AgentConfig{
			"offer_insights": {Provider: "gemini_agent", Temperature: 0.7},
			"valuation":      {Model: "deepseek-reasoner"},
		},
	}, map[string]llm.Provider{
		"deepseek":     named("deepseek", &opts),
		"gemini_agent": named("gemini_agent", &opts),
	}, nil)

	out, err := m.ExecutePrompt(context.Background(), "offer_insights", "p", "s", nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini_agent", out)
	assert.Equal(t, 0.7, opts["temperature"])

	out, err = m.ExecutePrompt(context.Background(), "valuation", "p", "s", map[string]interface{}{"temperature": 0.1})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", out)
	assert.Equal(t, "deepseek-reasoner", opts["model"])
	assert.Equal(t, 0.1, opts["temperature"])

	require.Error(t, m.SetGlobalProvider("openai"))
	require.NoError(t, m.SetGlobalProvider("gemini_agent"))
	assert.Equal(t, "gemini_agent", m.GetActiveProvider())
	assert.Equal(t, []string{"deepseek", "gemini_agent"}, m.Providers())
}

func TestManager_NoProvider(t *testing.T) {
	m := NewManager(Config{ActiveProvider: "none"}, nil, nil)
	_, err := m.ExecutePrompt(context.Background(), "valuation", "p", "s", nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
active_provider: gemini
agents:
  offer_insights:
    provider: gemini_agent
    temperature: 0.7
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.ActiveProvider)
	assert.Equal(t, "gemini_agent", cfg.Agents["offer_insights"].Provider)
}
