package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "session.created").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the common implementation used by the concrete constructors
// below.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeSessionCreated    = "session.created"
	TypeSessionCompleted  = "session.completed"
	TypeSessionDeleted    = "session.deleted"
	TypeOutputApproved    = "output.approved"
	TypeOutputRegenerated = "output.regenerated"
)

func SessionCreated(sessionId uuid.UUID, userId, workflowId string) Event {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id":  sessionId.String(),
			"user_id":     userId,
			"workflow_id": workflowId,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func SessionCompleted(sessionId uuid.UUID, userId string, completedSteps int) Event {
	return BaseEvent{
		Type: TypeSessionCompleted,
		Data: map[string]interface{}{
			"session_id":      sessionId.String(),
			"user_id":         userId,
			"completed_steps": completedSteps,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func SessionDeleted(sessionId uuid.UUID, userId string) Event {
	return BaseEvent{
		Type: TypeSessionDeleted,
		Data: map[string]interface{}{
			"session_id": sessionId.String(),
			"user_id":    userId,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func OutputApproved(sessionId uuid.UUID, agentId string, qualityScore float64) Event {
	return BaseEvent{
		Type: TypeOutputApproved,
		Data: map[string]interface{}{
			"session_id":    sessionId.String(),
			"agent_id":      agentId,
			"quality_score": qualityScore,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func OutputRegenerated(sessionId uuid.UUID, agentId string) Event {
	return BaseEvent{
		Type: TypeOutputRegenerated,
		Data: map[string]interface{}{
			"session_id": sessionId.String(),
			"agent_id":   agentId,
		},
		OccurredAt: time.Now().UTC(),
	}
}
