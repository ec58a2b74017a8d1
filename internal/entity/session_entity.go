package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is the unit of workflow state for one user's run through the
// full agent sequence. All mutation flows through the session's actor.
type Session struct {
	Id                  uuid.UUID               `json:"id"`
	UserId              uuid.UUID               `json:"user_id"`
	WorkflowId          string                  `json:"workflow_id"`
	Status              SessionStatus           `json:"status"`
	CurrentAgent        string                  `json:"current_agent"`
	CurrentStep         int                     `json:"current_step"`
	UserInputs          map[string]string       `json:"user_inputs"`
	AgentOutputs        map[string]*AgentOutput `json:"agent_outputs"`
	ConversationHistory []*Message              `json:"conversation_history"`
	Progress            Progress                `json:"progress"`
	CreatedAt           time.Time               `json:"created_at"`
	LastActive          time.Time               `json:"last_active"`
}

// Progress holds derived counters recomputed on every advancement.
type Progress struct {
	TotalSteps             int           `json:"total_steps"`
	CompletedSteps         int           `json:"completed_steps"`
	CurrentStepId          string        `json:"current_step_id"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
	StageProgress          StageProgress `json:"stage_progress"`
}

type StageProgress struct {
	Foundation float64 `json:"foundation"`
	Strategy   float64 `json:"strategy"`
	Validation float64 `json:"validation"`
}

// Output returns the live output for an agent id, or nil.
func (s *Session) Output(agentId string) *AgentOutput {
	if s.AgentOutputs == nil {
		return nil
	}
	return s.AgentOutputs[agentId]
}

// AppendMessage adds a message to the conversation history and refreshes
// activity. History is append-only.
func (s *Session) AppendMessage(m *Message) {
	s.ConversationHistory = append(s.ConversationHistory, m)
	s.LastActive = time.Now().UTC()
}

func (s *Session) Touch() {
	s.LastActive = time.Now().UTC()
}
