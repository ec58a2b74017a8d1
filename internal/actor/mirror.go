package actor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	mirrorChannel       = "session-frames"
	redisPublishTimeout = 2 * time.Second
)

type mirrorEnvelope struct {
	InstanceId string          `json:"instance_id"`
	SessionId  uuid.UUID       `json:"session_id"`
	Frame      json.RawMessage `json:"frame"`
}

// RedisMirror republishes broadcast frames over redis pub/sub so clients
// attached to the same session on another instance stay in sync. Optional:
// a nil *RedisMirror satisfies nothing and the actor simply skips it.
type RedisMirror struct {
	rdb        *redis.Client
	instanceId string
	logger     logger.ILogger
}

func NewRedisMirror(rdb *redis.Client, log logger.ILogger) *RedisMirror {
	return &RedisMirror{
		rdb:        rdb,
		instanceId: uuid.New().String(),
		logger:     log,
	}
}

func (m *RedisMirror) Publish(sessionId uuid.UUID, frame []byte) {
	payload, err := json.Marshal(mirrorEnvelope{
		InstanceId: m.instanceId,
		SessionId:  sessionId,
		Frame:      frame,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := m.rdb.Publish(ctx, mirrorChannel, payload).Err(); err != nil {
		m.logger.Warn("RedisMirror", "Publish failed", map[string]interface{}{
			"session_id": sessionId, "error": err.Error(),
		})
	}
}

// Listen consumes mirrored frames from other instances and hands them to
// the resident actor, if any. Blocks until ctx is cancelled.
func (m *RedisMirror) Listen(ctx context.Context, deliver func(sessionId uuid.UUID, frame []byte)) {
	sub := m.rdb.Subscribe(ctx, mirrorChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env mirrorEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.InstanceId == m.instanceId {
				continue
			}
			deliver(env.SessionId, env.Frame)
		}
	}
}
