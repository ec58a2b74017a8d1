package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
)

type CreateSessionRequest struct {
	WorkflowId string            `json:"workflow_id"`
	UserInputs map[string]string `json:"user_inputs" validate:"required"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type SessionResponse struct {
	Id           uuid.UUID                       `json:"id"`
	UserId       string                          `json:"user_id"`
	WorkflowId   string                          `json:"workflow_id"`
	Status       entity.SessionStatus            `json:"status"`
	CurrentAgent string                          `json:"current_agent"`
	CurrentStep  int                             `json:"current_step"`
	UserInputs   map[string]string               `json:"user_inputs"`
	AgentOutputs map[string]*entity.AgentOutput  `json:"agent_outputs"`
	Progress     entity.Progress                 `json:"progress"`
	CreatedAt    time.Time                       `json:"created_at"`
	LastActive   time.Time                       `json:"last_active"`
}

type SessionSummaryResponse struct {
	Id           uuid.UUID            `json:"id"`
	WorkflowId   string               `json:"workflow_id"`
	Status       entity.SessionStatus `json:"status"`
	CurrentAgent string               `json:"current_agent"`
	Progress     entity.Progress      `json:"progress"`
	CreatedAt    time.Time            `json:"created_at"`
	LastActive   time.Time            `json:"last_active"`
}

type SessionHistoryResponse struct {
	SessionId uuid.UUID         `json:"session_id"`
	Messages  []*entity.Message `json:"messages"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type ApproveOutputRequest struct {
	OutputId string `json:"outputId" validate:"required"`
	Feedback string `json:"feedback"`
}

type EditOutputRequest struct {
	OutputId      string `json:"outputId" validate:"required"`
	EditedContent string `json:"editedContent" validate:"required"`
}

type RegenerateOutputRequest struct {
	OutputId string `json:"outputId" validate:"required"`
	Feedback string `json:"feedback"`
}
