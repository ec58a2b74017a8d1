package actor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"
	"github.com/philippzach/growth-gpt-sub000/internal/websocket"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"

	"github.com/google/uuid"
)

// Manager is the registry of resident session actors. It revives evicted
// actors from the store on demand and routes websocket traffic to the
// owning actor. Implements websocket.InboundHandler.
type Manager struct {
	mu     sync.Mutex
	actors map[uuid.UUID]*Actor

	repo         contract.SessionRepository
	orchestrator *workflow.Orchestrator
	logger       logger.ILogger
	mirror       Mirror

	flushInterval time.Duration
	idleTimeout   time.Duration
}

func NewManager(
	repo contract.SessionRepository,
	orchestrator *workflow.Orchestrator,
	log logger.ILogger,
	mirror Mirror,
	flushInterval, idleTimeout time.Duration,
) *Manager {
	return &Manager{
		actors:        make(map[uuid.UUID]*Actor),
		repo:          repo,
		orchestrator:  orchestrator,
		logger:        log,
		mirror:        mirror,
		flushInterval: flushInterval,
		idleTimeout:   idleTimeout,
	}
}

// getOrCreate returns the resident actor for the session, reviving it from
// durable storage when it was evicted or never loaded on this instance.
func (m *Manager) getOrCreate(ctx context.Context, sessionId uuid.UUID) (*Actor, error) {
	m.mu.Lock()
	if a, ok := m.actors[sessionId]; ok {
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	session, err := m.repo.FindById(ctx, sessionId)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistenceFailure, "load session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have won the revival race while we were loading.
	if a, ok := m.actors[sessionId]; ok {
		return a, nil
	}
	a := New(session, m.repo, m.orchestrator, m.logger, m.mirror,
		m.flushInterval, m.idleTimeout, m.evicted)
	m.actors[sessionId] = a
	a.Start()
	return a, nil
}

func (m *Manager) resident(sessionId uuid.UUID) (*Actor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[sessionId]
	return a, ok
}

func (m *Manager) evicted(sessionId uuid.UUID, a *Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actors[sessionId] == a {
		delete(m.actors, sessionId)
	}
}

// Register places a freshly created session's actor in the registry so the
// first attach does not need a store round-trip.
func (m *Manager) Register(session *entity.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actors[session.Id]; ok {
		return
	}
	a := New(session, m.repo, m.orchestrator, m.logger, m.mirror,
		m.flushInterval, m.idleTimeout, m.evicted)
	m.actors[session.Id] = a
	a.Start()
}

// Attach connects a websocket client to its session actor. The actor sends
// the client a full state snapshot as its first frame.
func (m *Manager) Attach(ctx context.Context, client *websocket.Client) error {
	a, err := m.getOrCreate(ctx, client.SessionId)
	if err != nil {
		return err
	}
	err = a.Attach(ctx, client)
	if !errors.Is(err, ErrEvicted) {
		return err
	}
	a, err = m.revive(ctx, client.SessionId, a)
	if err != nil {
		return err
	}
	return a.Attach(ctx, client)
}

// Apply runs a serialized mutation against the session, reviving the actor
// if needed, and persists plus broadcasts the result.
func (m *Manager) Apply(ctx context.Context, sessionId uuid.UUID, fn ApplyFunc) error {
	a, err := m.getOrCreate(ctx, sessionId)
	if err != nil {
		return err
	}
	err = a.Apply(ctx, fn)
	if !errors.Is(err, ErrEvicted) {
		return err
	}
	a, err = m.revive(ctx, sessionId, a)
	if err != nil {
		return err
	}
	return a.Apply(ctx, fn)
}

// revive handles a command that lost the race against idle eviction: the
// dead actor is dropped from the registry and a fresh one is loaded from
// the flushed snapshot. Retried once; a second eviction within one call
// means the session is gone.
func (m *Manager) revive(ctx context.Context, sessionId uuid.UUID, dead *Actor) (*Actor, error) {
	m.evicted(sessionId, dead)
	return m.getOrCreate(ctx, sessionId)
}

// Snapshot returns the authoritative session state: the resident actor's
// in-memory copy when loaded, the durable snapshot otherwise.
func (m *Manager) Snapshot(ctx context.Context, sessionId uuid.UUID) (*entity.Session, error) {
	if a, ok := m.resident(sessionId); ok {
		s, err := a.Snapshot(ctx)
		if err == nil {
			return s, nil
		}
		// Actor raced into eviction; fall through to the store.
	}
	session, err := m.repo.FindById(ctx, sessionId)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistenceFailure, "load session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("session")
	}
	return session, nil
}

// Remove stops the actor (flushing first) and forgets it. The caller is
// responsible for deleting the durable snapshot.
func (m *Manager) Remove(ctx context.Context, sessionId uuid.UUID) error {
	a, ok := m.resident(sessionId)
	if !ok {
		return nil
	}
	if err := a.Stop(ctx); err != nil {
		return err
	}
	m.evicted(sessionId, a)
	return nil
}

// Shutdown flushes and stops every resident actor.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	for _, a := range actors {
		if err := a.Stop(ctx); err != nil {
			m.logger.Warn("ActorManager", "Actor stop timed out", map[string]interface{}{
				"session_id": a.sessionId, "error": err.Error(),
			})
		}
	}
}

// DeliverMirrored routes a frame from another instance to the resident
// actor's local connections. Frames for sessions not loaded here drop.
func (m *Manager) DeliverMirrored(sessionId uuid.UUID, frame []byte) {
	if a, ok := m.resident(sessionId); ok {
		a.DeliverMirrored(frame)
	}
}

// HandleInbound implements websocket.InboundHandler.
func (m *Manager) HandleInbound(c *websocket.Client, data []byte) {
	if a, ok := m.resident(c.SessionId); ok {
		a.SubmitInbound(c, data)
	}
}

// HandleDisconnect implements websocket.InboundHandler.
func (m *Manager) HandleDisconnect(c *websocket.Client) {
	if a, ok := m.resident(c.SessionId); ok {
		a.Detach(c)
	}
}
