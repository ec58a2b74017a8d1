package websocket

import (
	"encoding/json"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
)

// Server -> client frame types.
const (
	FrameSessionState      = "session_state"
	FramePong              = "pong"
	FrameSubscribed        = "subscribed"
	FrameHeartbeatAck      = "heartbeat_ack"
	FrameAgentTyping       = "agent_typing"
	FrameStreamingStart    = "streaming_start"
	FrameContentChunk      = "content_chunk"
	FrameStreamingComplete = "streaming_complete"
	FrameNewMessage        = "new_message"
	FrameOutputApproved    = "output_approved"
	FrameOutputEdited      = "output_edited"
	FrameUserTyping        = "user_typing"
	FrameError             = "error"
)

// Client -> server event types.
const (
	EventMessage          = "message"
	EventPing             = "ping"
	EventHeartbeat        = "heartbeat"
	EventSubscribeUpdates = "subscribe_updates"
	EventUserTyping       = "user_typing"
)

// Frame is one server->client protocol message. Fields are sparse; only
// those relevant for the type are set.
type Frame struct {
	Type      string          `json:"type"`
	Data      interface{}     `json:"data,omitempty"`
	MessageId string          `json:"message_id,omitempty"`
	AgentId   string          `json:"agent_id,omitempty"`
	Chunk     string          `json:"chunk,omitempty"`
	Message   *entity.Message `json:"message,omitempty"`
	ErrorMsg  string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

func (f Frame) Encode() []byte {
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}
	data, _ := json.Marshal(f)
	return data
}

func SessionStateFrame(session *entity.Session) Frame {
	return Frame{Type: FrameSessionState, Data: session}
}

func AgentTypingFrame(agentId string) Frame {
	return Frame{Type: FrameAgentTyping, AgentId: agentId}
}

func StreamingStartFrame(messageId, agentId string) Frame {
	return Frame{Type: FrameStreamingStart, MessageId: messageId, AgentId: agentId}
}

func ContentChunkFrame(messageId, chunk string) Frame {
	return Frame{Type: FrameContentChunk, MessageId: messageId, Chunk: chunk}
}

func StreamingCompleteFrame(messageId string, message *entity.Message) Frame {
	return Frame{Type: FrameStreamingComplete, MessageId: messageId, Message: message}
}

func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, ErrorMsg: message}
}

// ClientEvent is one inbound client->server message.
type ClientEvent struct {
	Type    string `json:"type"`
	Payload struct {
		Content string `json:"content"`
	} `json:"payload"`
}

func ParseClientEvent(data []byte) (*ClientEvent, error) {
	var event ClientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
