package actor

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/memory"
	"github.com/philippzach/growth-gpt-sub000/internal/websocket"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"
	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowProvider tracks concurrent invocations so tests can prove that the
// actor never runs two generations at once.
type slowProvider struct {
	content    string
	delay      time.Duration
	inFlight   int32
	maxSeen    int32
	totalCalls int32
}

func (p *slowProvider) observe() func() {
	cur := atomic.AddInt32(&p.inFlight, 1)
	for {
		max := atomic.LoadInt32(&p.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxSeen, max, cur) {
			break
		}
	}
	atomic.AddInt32(&p.totalCalls, 1)
	return func() { atomic.AddInt32(&p.inFlight, -1) }
}

func (p *slowProvider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	done := p.observe()
	defer done()
	time.Sleep(p.delay)
	return &llm.Completion{Content: p.content, TokensUsed: 1, Model: "stub"}, nil
}

func (p *slowProvider) CompleteStream(ctx context.Context, prompt llm.Prompt, onChunk llm.ChunkFunc) (*llm.Completion, error) {
	done := p.observe()
	defer done()
	time.Sleep(p.delay)
	for _, word := range strings.SplitAfter(p.content, " ") {
		onChunk(word)
	}
	return &llm.Completion{Content: p.content, TokensUsed: 1, Model: "stub"}, nil
}

func newTestManager(t *testing.T, provider llm.Provider, flush, idle time.Duration) (*Manager, *memory.SessionRepository) {
	t.Helper()
	repo := memory.NewSessionRepository()
	loader := configloader.NewLoader(t.TempDir())
	orch := workflow.NewOrchestrator(provider, loader, time.Second, logger.NewNopLogger())
	mgr := NewManager(repo, orch, logger.NewNopLogger(), nil, flush, idle)
	return mgr, repo
}

func newStoredSession(t *testing.T, repo *memory.SessionRepository) *entity.Session {
	t.Helper()
	session := workflow.NewSession(uuid.New(), "", map[string]string{"businessIdea": "test"})
	require.NoError(t, repo.Save(context.Background(), session))
	return session
}

func attachClient(t *testing.T, mgr *Manager, session *entity.Session) *websocket.Client {
	t.Helper()
	client := websocket.NewClient(nil, session.Id, session.UserId, mgr)
	require.NoError(t, mgr.Attach(context.Background(), client))
	return client
}

func recvFrame(t *testing.T, c *websocket.Client) websocket.Frame {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var f websocket.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return websocket.Frame{}
	}
}

func submitEvent(c *websocket.Client, mgr *Manager, eventType, content string) {
	event := websocket.ClientEvent{Type: eventType}
	event.Payload.Content = content
	data, _ := json.Marshal(event)
	mgr.HandleInbound(c, data)
}

func TestAttachSendsSnapshotFirst(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "hi"}, time.Minute, time.Hour)
	session := newStoredSession(t, repo)
	client := attachClient(t, mgr, session)

	frame := recvFrame(t, client)
	assert.Equal(t, websocket.FrameSessionState, frame.Type)

	snap, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var got entity.Session
	require.NoError(t, json.Unmarshal(snap, &got))
	assert.Equal(t, session.Id, got.Id)
	assert.Equal(t, "gtm-consultant", got.CurrentAgent)
}

func TestAttachUnknownSession(t *testing.T) {
	mgr, _ := newTestManager(t, &slowProvider{content: "hi"}, time.Minute, time.Hour)
	client := websocket.NewClient(nil, uuid.New(), uuid.New(), mgr)

	err := mgr.Attach(context.Background(), client)
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUserMessageStreamsToAllClients(t *testing.T) {
	provider := &slowProvider{content: "a grand strategy unfolds here"}
	mgr, repo := newTestManager(t, provider, time.Minute, time.Hour)
	session := newStoredSession(t, repo)

	sender := attachClient(t, mgr, session)
	viewer := attachClient(t, mgr, session)
	recvFrame(t, sender) // snapshot
	recvFrame(t, viewer)

	submitEvent(sender, mgr, websocket.EventMessage, "here is my idea")

	for _, client := range []*websocket.Client{sender, viewer} {
		frame := recvFrame(t, client)
		assert.Equal(t, websocket.FrameNewMessage, frame.Type)
		require.NotNil(t, frame.Message)
		assert.Equal(t, entity.SenderUser, frame.Message.Sender)

		assert.Equal(t, websocket.FrameAgentTyping, recvFrame(t, client).Type)

		start := recvFrame(t, client)
		assert.Equal(t, websocket.FrameStreamingStart, start.Type)
		require.NotEmpty(t, start.MessageId)

		var chunks []string
		for {
			frame = recvFrame(t, client)
			if frame.Type != websocket.FrameContentChunk {
				break
			}
			assert.Equal(t, start.MessageId, frame.MessageId)
			chunks = append(chunks, frame.Chunk)
		}

		// The chunk concatenation reconstructs the full generated output.
		assert.Equal(t, provider.content, strings.Join(chunks, ""))

		assert.Equal(t, websocket.FrameStreamingComplete, frame.Type)
		assert.Equal(t, start.MessageId, frame.MessageId)
		require.NotNil(t, frame.Message)
		assert.Contains(t, frame.Message.Content, provider.content)
	}

	// The completed message was persisted before the complete frame.
	stored, err := repo.FindById(context.Background(), session.Id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotNil(t, stored.Output("gtm-consultant"))
	assert.Len(t, stored.ConversationHistory, 2)
}

func TestGenerationsNeverOverlap(t *testing.T) {
	provider := &slowProvider{content: "slow output", delay: 50 * time.Millisecond}
	mgr, repo := newTestManager(t, provider, time.Minute, time.Hour)
	session := newStoredSession(t, repo)
	client := attachClient(t, mgr, session)
	recvFrame(t, client) // snapshot

	submitEvent(client, mgr, websocket.EventMessage, "first")
	submitEvent(client, mgr, websocket.EventMessage, "second")

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&provider.totalCalls) == 2
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.maxSeen),
		"two generations ran concurrently for one session")
}

func TestPingHeartbeatTyping(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Minute, time.Hour)
	session := newStoredSession(t, repo)

	a := attachClient(t, mgr, session)
	b := attachClient(t, mgr, session)
	recvFrame(t, a)
	recvFrame(t, b)

	submitEvent(a, mgr, websocket.EventPing, "")
	assert.Equal(t, websocket.FramePong, recvFrame(t, a).Type)

	submitEvent(a, mgr, websocket.EventHeartbeat, "")
	assert.Equal(t, websocket.FrameHeartbeatAck, recvFrame(t, a).Type)

	submitEvent(a, mgr, websocket.EventSubscribeUpdates, "")
	assert.Equal(t, websocket.FrameSubscribed, recvFrame(t, a).Type)

	// Typing goes to the other connection, not back to the sender.
	submitEvent(a, mgr, websocket.EventUserTyping, "")
	assert.Equal(t, websocket.FrameUserTyping, recvFrame(t, b).Type)
	select {
	case data := <-a.Send:
		t.Fatalf("sender received its own typing frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplySerializesAndBroadcasts(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Minute, time.Hour)
	session := newStoredSession(t, repo)
	client := attachClient(t, mgr, session)
	recvFrame(t, client)

	err := mgr.Apply(context.Background(), session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		s.Status = entity.SessionStatusPaused
		return []websocket.Frame{websocket.SessionStateFrame(s)}, nil
	})
	require.NoError(t, err)

	frame := recvFrame(t, client)
	assert.Equal(t, websocket.FrameSessionState, frame.Type)

	// Apply flushes before broadcasting.
	stored, err := repo.FindById(context.Background(), session.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusPaused, stored.Status)
}

func TestApplyErrorLeavesStateAlone(t *testing.T) {
	mgr, _ := newTestManager(t, &slowProvider{content: "x"}, time.Minute, time.Hour)
	session := newStoredSession(t, mustRepo(mgr))

	wantErr := apperror.PreconditionFailed("nope")
	err := mgr.Apply(context.Background(), session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	snap, err := mgr.Snapshot(context.Background(), session.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, snap.Status)
}

func mustRepo(mgr *Manager) *memory.SessionRepository {
	return mgr.repo.(*memory.SessionRepository)
}

func TestApplyFailureRollsBackPartialMutation(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Minute, time.Hour)
	session := newStoredSession(t, repo)

	// The mutation gets halfway (output stored, message appended) before
	// failing; none of it may stick.
	wantErr := apperror.PreconditionFailed("advance refused")
	err := mgr.Apply(context.Background(), session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		s.AgentOutputs["gtm-consultant"] = &entity.AgentOutput{
			AgentId: "gtm-consultant",
			Status:  entity.OutputStatusApproved,
			Content: "half done",
		}
		s.AppendMessage(entity.NewSystemMessage(s.Id, "half done"))
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	snap, err := mgr.Snapshot(context.Background(), session.Id)
	require.NoError(t, err)
	assert.Nil(t, snap.Output("gtm-consultant"))
	assert.Empty(t, snap.ConversationHistory)
}

func TestShutdownFailsBufferedCommands(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Hour, time.Hour)
	session := newStoredSession(t, repo)

	// Never started, so the commands stay buffered until shutdown drains.
	a := New(session, repo, nil, logger.NewNopLogger(), nil, time.Hour, time.Hour, nil)

	applyReply := make(chan error, 1)
	a.mailbox <- command{kind: cmdApply, reply: applyReply}
	read := make(chan *entity.Session, 1)
	a.mailbox <- command{kind: cmdRead, read: read}
	client := websocket.NewClient(nil, session.Id, session.UserId, mgr)
	attachReply := make(chan error, 1)
	a.mailbox <- command{kind: cmdAttach, client: client, reply: attachReply}

	a.shutdown()

	require.ErrorIs(t, <-applyReply, ErrEvicted)
	assert.Nil(t, <-read)
	require.ErrorIs(t, <-attachReply, ErrEvicted)
}

func TestManagerRevivesEvictedActorOnApply(t *testing.T) {
	mgr, _ := newTestManager(t, &slowProvider{content: "x"}, time.Hour, time.Hour)
	session := newStoredSession(t, mustRepo(mgr))
	ctx := context.Background()

	require.NoError(t, mgr.Apply(ctx, session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		return nil, nil
	}))
	dead, ok := mgr.resident(session.Id)
	require.True(t, ok)

	// Stop the actor behind the manager's back; the registry still points
	// at the dead goroutine.
	require.NoError(t, dead.Stop(ctx))

	err := mgr.Apply(ctx, session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		s.Status = entity.SessionStatusPaused
		return nil, nil
	})
	require.NoError(t, err)

	snap, err := mgr.Snapshot(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusPaused, snap.Status)

	revived, ok := mgr.resident(session.Id)
	require.True(t, ok)
	assert.NotSame(t, dead, revived)
}

func TestMessageOnCompletedSessionSkipsStream(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Minute, time.Hour)
	session := newStoredSession(t, repo)
	session.Status = entity.SessionStatusCompleted
	session.CurrentAgent = ""
	session.CurrentStep = workflow.TotalSteps()
	require.NoError(t, repo.Save(context.Background(), session))

	client := attachClient(t, mgr, session)
	recvFrame(t, client) // snapshot

	submitEvent(client, mgr, websocket.EventMessage, "one more thing")

	userFrame := recvFrame(t, client)
	assert.Equal(t, websocket.FrameNewMessage, userFrame.Type)
	require.NotNil(t, userFrame.Message)
	assert.Equal(t, entity.SenderUser, userFrame.Message.Sender)

	reminder := recvFrame(t, client)
	assert.Equal(t, websocket.FrameNewMessage, reminder.Type)
	require.NotNil(t, reminder.Message)
	assert.Contains(t, reminder.Message.Content, "already complete")

	// No typing or stream frames follow the reminder.
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected frame after reminder: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvictionFlushesAndReloads(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, 10*time.Millisecond, 20*time.Millisecond)
	session := newStoredSession(t, repo)

	err := mgr.Apply(context.Background(), session.Id, func(s *entity.Session) ([]websocket.Frame, error) {
		s.AppendMessage(entity.NewSystemMessage(s.Id, "remember me"))
		return nil, nil
	})
	require.NoError(t, err)

	// Wait for the idle actor to evict itself.
	require.Eventually(t, func() bool {
		_, resident := mgr.resident(session.Id)
		return !resident
	}, 2*time.Second, 10*time.Millisecond)

	// A fresh snapshot revives from the durable store with history intact.
	snap, err := mgr.Snapshot(context.Background(), session.Id)
	require.NoError(t, err)
	require.Len(t, snap.ConversationHistory, 1)
	assert.Equal(t, "remember me", snap.ConversationHistory[0].Content)
}

func TestDetachFlushesOnLastClient(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Hour, time.Hour)
	session := newStoredSession(t, repo)
	client := attachClient(t, mgr, session)
	recvFrame(t, client)

	// Heartbeat marks the session dirty without flushing.
	submitEvent(client, mgr, websocket.EventHeartbeat, "")
	recvFrame(t, client)

	mgr.HandleDisconnect(client)

	require.Eventually(t, func() bool {
		stored, err := repo.FindById(context.Background(), session.Id)
		return err == nil && stored != nil && stored.LastActive.After(session.LastActive)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveStopsActor(t *testing.T) {
	mgr, repo := newTestManager(t, &slowProvider{content: "x"}, time.Hour, time.Hour)
	session := newStoredSession(t, repo)
	client := attachClient(t, mgr, session)
	recvFrame(t, client)

	require.NoError(t, mgr.Remove(context.Background(), session.Id))

	_, resident := mgr.resident(session.Id)
	assert.False(t, resident)

	// The client's send channel is closed on stop.
	_, ok := <-client.Send
	assert.False(t, ok)
}
