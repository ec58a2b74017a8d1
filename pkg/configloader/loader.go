// Package configloader resolves per-agent role configuration. Built-in
// defaults cover the full sequence; a YAML file per agent id in the config
// directory overrides them. Loaded configs are cached.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
)

// AgentConfig describes one role in the sequence.
type AgentConfig struct {
	Id             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	DisplayName    string   `yaml:"display_name"`
	OutputName     string   `yaml:"output_name"`
	Identity       string   `yaml:"identity"`
	TaskPrompt     string   `yaml:"task_prompt"`
	KnowledgeFocus []string `yaml:"knowledge_focus"`
	Temperature    float64  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
}

type Loader struct {
	dir   string
	cache *cache.Cache
}

func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

// LoadAgentConfig returns the config for an agent id, preferring a YAML
// override from the config directory over the built-in default.
func (l *Loader) LoadAgentConfig(agentId string) (*AgentConfig, error) {
	if x, found := l.cache.Get(agentId); found {
		return x.(*AgentConfig), nil
	}

	cfg, ok := defaultConfigs[agentId]
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", agentId)
	}
	// Copy the default so overrides never mutate the table.
	resolved := cfg

	if l.dir != "" {
		path := filepath.Join(l.dir, agentId+".yaml")
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &resolved); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	l.cache.Set(agentId, &resolved, cache.DefaultExpiration)
	return &resolved, nil
}

// LoadKnowledge returns injected knowledge text for a focus area, empty if
// no file ships for it. Knowledge corpus content is deployment-provided.
func (l *Loader) LoadKnowledge(focus string) (string, error) {
	if l.dir == "" {
		return "", nil
	}
	key := "knowledge:" + focus
	if x, found := l.cache.Get(key); found {
		return x.(string), nil
	}

	path := filepath.Join(l.dir, "knowledge", focus+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	l.cache.Set(key, string(data), cache.DefaultExpiration)
	return string(data), nil
}
