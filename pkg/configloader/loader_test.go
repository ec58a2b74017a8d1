package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sequenceAgents = []string{
	"gtm-consultant",
	"persona-strategist",
	"product-manager",
	"growth-manager",
	"head-of-acquisition",
	"head-of-retention",
	"viral-growth-architect",
	"growth-hacker",
}

func TestDefaultsCoverFullSequence(t *testing.T) {
	l := NewLoader("")
	for _, agentId := range sequenceAgents {
		cfg, err := l.LoadAgentConfig(agentId)
		require.NoError(t, err, agentId)
		assert.Equal(t, agentId, cfg.Id)
		assert.NotEmpty(t, cfg.DisplayName)
		assert.NotEmpty(t, cfg.Identity)
		assert.NotEmpty(t, cfg.TaskPrompt)
		assert.Greater(t, cfg.MaxTokens, 0)
	}
}

func TestUnknownAgent(t *testing.T) {
	l := NewLoader("")
	_, err := l.LoadAgentConfig("cfo")
	assert.Error(t, err)
}

func TestYamlOverride(t *testing.T) {
	dir := t.TempDir()
	override := []byte("display_name: Override\nmax_tokens: 1234\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gtm-consultant.yaml"), override, 0o644))

	l := NewLoader(dir)
	cfg, err := l.LoadAgentConfig("gtm-consultant")
	require.NoError(t, err)

	assert.Equal(t, "Override", cfg.DisplayName)
	assert.Equal(t, 1234, cfg.MaxTokens)
	// Fields absent from the override keep their defaults.
	assert.Equal(t, "gtm-consultant", cfg.Id)
	assert.NotEmpty(t, cfg.Identity)

	// The override never bleeds into other agents.
	other, err := l.LoadAgentConfig("growth-hacker")
	require.NoError(t, err)
	assert.NotEqual(t, "Override", other.DisplayName)
}

func TestLoadKnowledge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "knowledge"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "knowledge", "market-segmentation.md"), []byte("# Segments"), 0o644))

	l := NewLoader(dir)

	text, err := l.LoadKnowledge("market-segmentation")
	require.NoError(t, err)
	assert.Equal(t, "# Segments", text)

	// Missing focus areas are not an error.
	text, err = l.LoadKnowledge("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, text)
}
