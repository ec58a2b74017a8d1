// Package promptbuilder assembles provider prompts from session inputs,
// approved prior outputs and role configuration. Pure from the
// orchestrator's point of view.
package promptbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/llm"
)

// Context carries everything one generation needs.
type Context struct {
	AgentConfig     *configloader.AgentConfig
	UserMessage     string
	UserInputs      map[string]string
	PreviousOutputs map[string]string // agent id -> approved content only
	KnowledgeBase   map[string]string // focus area -> injected text
	Feedback        string            // set on regeneration
}

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the system and user prompts for one generation.
func (b *Builder) Build(ctx Context) llm.Prompt {
	var system strings.Builder
	system.WriteString(ctx.AgentConfig.Identity)
	system.WriteString("\n\n")
	system.WriteString(ctx.AgentConfig.TaskPrompt)

	for _, focus := range sortedKeys(ctx.KnowledgeBase) {
		system.WriteString("\n\n## Reference: ")
		system.WriteString(focus)
		system.WriteString("\n")
		system.WriteString(ctx.KnowledgeBase[focus])
	}

	var user strings.Builder
	if len(ctx.UserInputs) > 0 {
		user.WriteString("## Business Context\n")
		for _, k := range sortedKeys(ctx.UserInputs) {
			fmt.Fprintf(&user, "- %s: %s\n", k, ctx.UserInputs[k])
		}
		user.WriteString("\n")
	}

	if len(ctx.PreviousOutputs) > 0 {
		user.WriteString("## Approved Prior Outputs\n")
		for _, agentId := range sortedKeys(ctx.PreviousOutputs) {
			fmt.Fprintf(&user, "### %s\n%s\n\n", agentId, ctx.PreviousOutputs[agentId])
		}
	}

	if ctx.Feedback != "" {
		user.WriteString("## User Feedback On The Previous Draft\n")
		user.WriteString(ctx.Feedback)
		user.WriteString("\n\n")
	}

	if ctx.UserMessage != "" {
		user.WriteString("## User Message\n")
		user.WriteString(ctx.UserMessage)
	}

	return llm.Prompt{
		System:      system.String(),
		User:        user.String(),
		Temperature: ctx.AgentConfig.Temperature,
		MaxTokens:   ctx.AgentConfig.MaxTokens,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
