package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageSender string

const (
	SenderUser   MessageSender = "user"
	SenderAgent  MessageSender = "agent"
	SenderSystem MessageSender = "system"
)

type MessageType string

const (
	MessageTypeText             MessageType = "text"
	MessageTypeOutput           MessageType = "output"
	MessageTypeApprovalRequest  MessageType = "approval_request"
	MessageTypeSystem           MessageType = "system"
	MessageTypeUserInputRequest MessageType = "user_input_request"
)

// Message is one entry in a session's conversation history. Never mutated
// after insertion; the head of a streamed response is inserted only once
// streaming completes.
type Message struct {
	Id        uuid.UUID        `json:"id"`
	SessionId uuid.UUID        `json:"session_id"`
	Sender    MessageSender    `json:"sender"`
	AgentId   string           `json:"agent_id,omitempty"`
	Type      MessageType      `json:"type"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MessageMetadata links a message to the agent output it represents.
type MessageMetadata struct {
	AgentId          string  `json:"agent_id,omitempty"`
	OutputId         string  `json:"output_id,omitempty"`
	RequiresApproval bool    `json:"requires_approval,omitempty"`
	QualityScore     float64 `json:"quality_score,omitempty"`
}

func NewSystemMessage(sessionId uuid.UUID, content string) *Message {
	return &Message{
		Id:        uuid.New(),
		SessionId: sessionId,
		Sender:    SenderSystem,
		Type:      MessageTypeText,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func NewUserMessage(sessionId uuid.UUID, content string) *Message {
	return &Message{
		Id:        uuid.New(),
		SessionId: sessionId,
		Sender:    SenderUser,
		Type:      MessageTypeText,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
