package actor

import (
	"context"
	"strings"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/websocket"

	"github.com/google/uuid"
)

// generationTimeout bounds a single end-to-end generation inside the
// actor loop. The provider carries its own per-request timeout; this is
// the outer ceiling so a wedged stream cannot stall the mailbox forever.
const generationTimeout = 5 * time.Minute

func (a *Actor) handleInbound(c *websocket.Client, data []byte) {
	event, err := websocket.ParseClientEvent(data)
	if err != nil {
		a.sendTo(c, websocket.ErrorFrame("malformed event").Encode())
		return
	}

	switch event.Type {
	case websocket.EventPing:
		a.sendTo(c, websocket.Frame{Type: websocket.FramePong}.Encode())
	case websocket.EventHeartbeat:
		a.session.Touch()
		a.dirty = true
		a.sendTo(c, websocket.Frame{Type: websocket.FrameHeartbeatAck}.Encode())
	case websocket.EventSubscribeUpdates:
		a.sendTo(c, websocket.Frame{Type: websocket.FrameSubscribed}.Encode())
	case websocket.EventUserTyping:
		a.broadcastToOthers(c, websocket.Frame{Type: websocket.FrameUserTyping}.Encode())
	case websocket.EventMessage:
		a.handleUserMessage(event.Payload.Content)
	default:
		a.sendTo(c, websocket.ErrorFrame("unknown event type: "+event.Type).Encode())
	}
}

// handleUserMessage runs one generation for the current agent, relaying
// provider chunks to every attached connection as they arrive. It blocks
// the mailbox, which is what serializes generations: a second message
// queues behind this one and never runs concurrently.
func (a *Actor) handleUserMessage(content string) {
	if strings.TrimSpace(content) == "" {
		a.broadcast(websocket.ErrorFrame("empty message").Encode())
		return
	}
	if a.session.Status == entity.SessionStatusPaused {
		a.broadcast(websocket.ErrorFrame("session is paused").Encode())
		return
	}

	userMsg := entity.NewUserMessage(a.sessionId, content)
	a.session.AppendMessage(userMsg)
	a.dirty = true
	a.broadcast(websocket.Frame{Type: websocket.FrameNewMessage, Message: userMsg}.Encode())

	// A completed workflow answers with a reminder; no stream is opened.
	if a.session.Status == entity.SessionStatusCompleted {
		ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
		defer cancel()
		reply, err := a.orchestrator.ProcessUserMessage(ctx, a.session, userMsg, nil)
		if err == nil && reply != nil {
			a.session.AppendMessage(reply)
			a.broadcast(websocket.Frame{Type: websocket.FrameNewMessage, Message: reply}.Encode())
		}
		a.flush()
		return
	}

	correlationId := uuid.New().String()
	a.broadcast(websocket.AgentTypingFrame(a.session.CurrentAgent).Encode())
	a.broadcast(websocket.StreamingStartFrame(correlationId, a.session.CurrentAgent).Encode())

	onChunk := func(chunk string) {
		a.fragments[correlationId] = append(a.fragments[correlationId], chunk)
		a.broadcast(websocket.ContentChunkFrame(correlationId, chunk).Encode())
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	reply, err := a.orchestrator.ProcessUserMessage(ctx, a.session, userMsg, onChunk)
	if err != nil {
		// Outputs are untouched on failure; only the conversation records
		// that the attempt happened.
		a.logger.Error("Actor", "Generation failed", map[string]interface{}{
			"session_id": a.sessionId, "error": err.Error(),
		})
		if reply != nil {
			a.session.AppendMessage(reply)
			a.broadcast(websocket.Frame{Type: websocket.FrameNewMessage, Message: reply}.Encode())
		}
		a.broadcast(websocket.ErrorFrame(err.Error()).Encode())
		delete(a.fragments, correlationId)
		a.flush()
		return
	}

	a.session.AppendMessage(reply)
	a.dirty = true

	// Persist before announcing completion so a reconnecting client that
	// missed the stream still finds the message in the snapshot.
	a.flush()

	a.broadcast(websocket.StreamingCompleteFrame(correlationId, reply).Encode())
	delete(a.fragments, correlationId)
}
