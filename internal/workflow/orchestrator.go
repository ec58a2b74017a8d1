// Package workflow drives a session through the fixed agent sequence. The
// orchestrator translates one external event into a session mutation plus
// zero-or-one outgoing message; it never talks to connections or storage.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/llm"
	"github.com/philippzach/growth-gpt-sub000/pkg/promptbuilder"

	"github.com/google/uuid"
)

const DefaultWorkflowId = "master-workflow-v2"

type Orchestrator struct {
	provider llm.Provider
	builder  *promptbuilder.Builder
	loader   *configloader.Loader
	timeout  time.Duration
	logger   logger.ILogger
}

func NewOrchestrator(
	provider llm.Provider,
	loader *configloader.Loader,
	timeout time.Duration,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		builder:  promptbuilder.NewBuilder(),
		loader:   loader,
		timeout:  timeout,
		logger:   log,
	}
}

// NewSession builds a fresh session positioned at step 0.
func NewSession(userId uuid.UUID, workflowId string, userInputs map[string]string) *entity.Session {
	if workflowId == "" {
		workflowId = DefaultWorkflowId
	}
	if userInputs == nil {
		userInputs = make(map[string]string)
	}
	now := time.Now().UTC()
	return &entity.Session{
		Id:           uuid.New(),
		UserId:       userId,
		WorkflowId:   workflowId,
		Status:       entity.SessionStatusActive,
		CurrentAgent: Sequence[0].AgentId,
		CurrentStep:  0,
		UserInputs:   userInputs,
		AgentOutputs: make(map[string]*entity.AgentOutput),
		Progress:     NewProgress(),
		CreatedAt:    now,
		LastActive:   now,
	}
}

// ProcessUserMessage runs one generation for the current agent and stores
// the result as a new pending output. On provider failure the session is
// left unchanged and a system-sender error message is returned alongside
// the error, so callers can surface it without persisting partial state.
func (o *Orchestrator) ProcessUserMessage(
	ctx context.Context,
	session *entity.Session,
	userMessage *entity.Message,
	onChunk llm.ChunkFunc,
) (*entity.Message, error) {
	step, ok := StepAt(session.CurrentStep)
	if !ok {
		// Past the last step: the terminal summary was already appended
		// when the workflow completed, so just remind.
		return entity.NewSystemMessage(session.Id,
			"This workflow is already complete. No further generation will run."), nil
	}

	cfg, err := o.loader.LoadAgentConfig(step.AgentId)
	if err != nil {
		return errorMessage(session, err), apperror.Wrap(apperror.KindInternal, "load agent config", err)
	}

	output, err := o.generate(ctx, session, cfg, userMessage.Content, "", onChunk)
	if err != nil {
		return errorMessage(session, err), apperror.UpstreamFailure(err)
	}

	// Only now does the session change: the output replaces any prior
	// entry for this agent and stays pending until the user decides.
	session.AgentOutputs[step.AgentId] = output
	session.Touch()

	return &entity.Message{
		Id:        uuid.New(),
		SessionId: session.Id,
		Sender:    entity.SenderAgent,
		AgentId:   step.AgentId,
		Type:      entity.MessageTypeOutput,
		Content:   formatOutputForChat(output, cfg),
		Metadata: &entity.MessageMetadata{
			AgentId:          step.AgentId,
			OutputId:         step.AgentId,
			RequiresApproval: true,
			QualityScore:     output.QualityScore,
		},
		Timestamp: time.Now().UTC(),
	}, nil
}

// MoveToNextAgent advances the workflow one step. Precondition: the output
// for the current agent is approved.
func (o *Orchestrator) MoveToNextAgent(session *entity.Session) error {
	current := session.Output(session.CurrentAgent)
	if current == nil || current.Status != entity.OutputStatusApproved {
		return apperror.PreconditionFailed("current agent output must be approved before proceeding")
	}

	session.CurrentStep++
	session.Progress.CompletedSteps++

	if session.CurrentStep >= TotalSteps() {
		session.Status = entity.SessionStatusCompleted
		session.CurrentAgent = ""
		recomputeProgress(session)
		session.AppendMessage(completionMessage(session))
		return nil
	}

	next := Sequence[session.CurrentStep]
	session.CurrentAgent = next.AgentId
	recomputeProgress(session)
	session.Touch()
	return nil
}

// RegenerateAgentOutput re-runs generation for an agent with user feedback
// folded into the prompt. The replacement output stays pending and the
// workflow position does not move.
func (o *Orchestrator) RegenerateAgentOutput(
	ctx context.Context,
	session *entity.Session,
	agentId string,
	feedback string,
	onChunk llm.ChunkFunc,
) (*entity.AgentOutput, error) {
	if session.Output(agentId) == nil {
		return nil, apperror.NotFound("agent output")
	}

	cfg, err := o.loader.LoadAgentConfig(agentId)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load agent config", err)
	}

	output, err := o.generate(ctx, session, cfg, "", feedback, onChunk)
	if err != nil {
		return nil, apperror.UpstreamFailure(err)
	}

	session.AgentOutputs[agentId] = output
	session.Touch()
	return output, nil
}

func (o *Orchestrator) generate(
	ctx context.Context,
	session *entity.Session,
	cfg *configloader.AgentConfig,
	userMessage string,
	feedback string,
	onChunk llm.ChunkFunc,
) (*entity.AgentOutput, error) {
	knowledgeBase := make(map[string]string)
	for _, focus := range cfg.KnowledgeFocus {
		text, err := o.loader.LoadKnowledge(focus)
		if err != nil {
			o.logger.Warn("Workflow", "Knowledge load failed", map[string]interface{}{
				"focus": focus, "error": err.Error(),
			})
			continue
		}
		if text != "" {
			knowledgeBase[focus] = text
		}
	}

	prompt := o.builder.Build(promptbuilder.Context{
		AgentConfig:     cfg,
		UserMessage:     userMessage,
		UserInputs:      session.UserInputs,
		PreviousOutputs: approvedOutputs(session),
		KnowledgeBase:   knowledgeBase,
		Feedback:        feedback,
	})

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	started := time.Now()
	var completion *llm.Completion
	var err error
	if onChunk != nil {
		completion, err = o.provider.CompleteStream(callCtx, prompt, onChunk)
	} else {
		completion, err = o.provider.Complete(callCtx, prompt)
	}
	if err != nil {
		o.logger.Error("Workflow", "Generation failed", map[string]interface{}{
			"session_id": session.Id, "agent_id": cfg.Id, "error": err.Error(),
		})
		return nil, err
	}

	elapsed := time.Since(started)
	o.logger.Info("Workflow", "Generation complete", map[string]interface{}{
		"session_id": session.Id,
		"agent_id":   cfg.Id,
		"tokens":     completion.TokensUsed,
		"elapsed_ms": elapsed.Milliseconds(),
	})

	sources := make([]string, 0, len(knowledgeBase))
	for focus := range knowledgeBase {
		sources = append(sources, focus)
	}

	return &entity.AgentOutput{
		AgentId:      cfg.Id,
		Status:       entity.OutputStatusPending,
		Content:      completion.Content,
		QualityScore: qualityScore(completion.Content),
		GeneratedAt:  time.Now().UTC(),
		Metadata: &entity.AgentOutputMetadata{
			TokensUsed:           completion.TokensUsed,
			ProcessingTime:       elapsed,
			KnowledgeSourcesUsed: sources,
			Model:                completion.Model,
		},
	}, nil
}

// approvedOutputs exposes only approved prior outputs to later roles.
// Pending and rejected content never leaks into downstream prompts.
func approvedOutputs(session *entity.Session) map[string]string {
	outputs := make(map[string]string)
	for agentId, output := range session.AgentOutputs {
		if output.Status == entity.OutputStatusApproved {
			outputs[agentId] = output.Content
		}
	}
	return outputs
}

// qualityScore is a cheap structural heuristic, clamped to [0,1].
func qualityScore(content string) float64 {
	score := 0.5
	if len(content) > 500 {
		score += 0.2
	}
	if strings.Contains(content, "##") {
		score += 0.2
	}
	if strings.Contains(content, "- ") || strings.Contains(content, "* ") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

func formatOutputForChat(output *entity.AgentOutput, cfg *configloader.AgentConfig) string {
	return fmt.Sprintf(`## %s's Analysis & Recommendations

%s

---

**Quality Score:** %d%%

Please review this output. You can approve it to continue to the next agent, edit it to make changes, or regenerate it with specific feedback.`,
		cfg.DisplayName,
		output.Content,
		int(output.QualityScore*100),
	)
}

func completionMessage(session *entity.Session) *entity.Message {
	var lines []string
	for _, step := range Sequence {
		if _, ok := session.AgentOutputs[step.AgentId]; ok {
			lines = append(lines, "- "+step.AgentId)
		}
	}
	content := fmt.Sprintf(`**Congratulations!** Your growth strategy is complete. You worked through all %d agents and created:

%s

Your strategy is now ready for implementation.`, TotalSteps(), strings.Join(lines, "\n"))

	return entity.NewSystemMessage(session.Id, content)
}

func errorMessage(session *entity.Session, err error) *entity.Message {
	return entity.NewSystemMessage(session.Id, fmt.Sprintf(
		"I encountered an error while processing your request: %v\n\nPlease try again, or contact support if this issue persists.", err))
}
