// Package actor hosts the per-session state owner. One goroutine owns one
// session; every mutation is a command on its mailbox, so no two events for
// the same session ever execute concurrently. Attached websocket clients
// are fanned out to from inside the loop.
package actor

import (
	"context"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"
	"github.com/philippzach/growth-gpt-sub000/internal/websocket"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"

	"github.com/google/uuid"
)

// ApplyFunc mutates the session inside the actor loop. Returned frames are
// broadcast to every attached connection after the mutation persists.
type ApplyFunc func(session *entity.Session) ([]websocket.Frame, error)

type commandKind int

const (
	cmdAttach commandKind = iota
	cmdDetach
	cmdInbound
	cmdApply
	cmdRead
	cmdRelay
	cmdStop
)

type command struct {
	kind    commandKind
	client  *websocket.Client
	data    []byte
	apply   ApplyFunc
	reply   chan error
	read    chan *entity.Session
}

type Actor struct {
	sessionId uuid.UUID
	session   *entity.Session

	clients map[*websocket.Client]struct{}
	mailbox chan command
	done    chan struct{}

	repo         contract.SessionRepository
	orchestrator *workflow.Orchestrator
	logger       logger.ILogger
	mirror       Mirror

	flushInterval time.Duration
	idleTimeout   time.Duration
	lastActivity  time.Time
	dirty         bool

	// In-flight fragment buffers, keyed by correlation id. An entry is
	// discarded only after the streaming_complete broadcast.
	fragments map[string][]string

	onEvicted func(sessionId uuid.UUID, a *Actor)
}

// Mirror republishes broadcast frames to other instances. Nil-safe.
type Mirror interface {
	Publish(sessionId uuid.UUID, frame []byte)
}

// ErrEvicted reports a command that raced the actor's shutdown. The manager
// resolves it by reviving the actor from the store and retrying once.
var ErrEvicted = apperror.New(apperror.KindNotFound, "session actor evicted")

func New(
	session *entity.Session,
	repo contract.SessionRepository,
	orchestrator *workflow.Orchestrator,
	log logger.ILogger,
	mirror Mirror,
	flushInterval, idleTimeout time.Duration,
	onEvicted func(uuid.UUID, *Actor),
) *Actor {
	return &Actor{
		sessionId:     session.Id,
		session:       session,
		clients:       make(map[*websocket.Client]struct{}),
		mailbox:       make(chan command, 64),
		done:          make(chan struct{}),
		repo:          repo,
		orchestrator:  orchestrator,
		logger:        log,
		mirror:        mirror,
		flushInterval: flushInterval,
		idleTimeout:   idleTimeout,
		lastActivity:  time.Now(),
		fragments:     make(map[string][]string),
		onEvicted:     onEvicted,
	}
}

func (a *Actor) Start() {
	go a.run()
}

func (a *Actor) run() {
	flushTicker := time.NewTicker(a.flushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case cmd := <-a.mailbox:
			if a.handle(cmd) {
				a.shutdown()
				return
			}
		case <-flushTicker.C:
			a.flush()
			a.logger.Debug("Actor", "Session metrics", map[string]interface{}{
				"session_id":    a.sessionId,
				"connections":   len(a.clients),
				"message_count": len(a.session.ConversationHistory),
				"idle_seconds":  int(time.Since(a.lastActivity).Seconds()),
			})
			if a.idleExpired() {
				a.evict()
				a.shutdown()
				return
			}
		}
	}
}

// shutdown closes the done gate and fails every command still buffered in
// the mailbox, so no caller blocks on a reply that will never come. A send
// can still race past the drain; the reply waits below guard that window
// by also selecting on done.
func (a *Actor) shutdown() {
	close(a.done)
	for {
		select {
		case cmd := <-a.mailbox:
			a.reject(cmd)
		default:
			return
		}
	}
}

func (a *Actor) reject(cmd command) {
	switch cmd.kind {
	case cmdApply, cmdAttach:
		if cmd.reply != nil {
			cmd.reply <- ErrEvicted
		}
	case cmdRead:
		cmd.read <- nil
	case cmdStop:
		if cmd.reply != nil {
			cmd.reply <- nil
		}
	}
}

// handle processes one command. Returns true when the loop should stop.
func (a *Actor) handle(cmd command) bool {
	switch cmd.kind {
	case cmdAttach:
		a.attach(cmd.client)
		if cmd.reply != nil {
			cmd.reply <- nil
		}
	case cmdDetach:
		a.detach(cmd.client)
	case cmdInbound:
		a.handleInbound(cmd.client, cmd.data)
	case cmdApply:
		cmd.reply <- a.applyMutation(cmd.apply)
	case cmdRead:
		cmd.read <- a.snapshotCopy()
	case cmdRelay:
		a.deliverLocal(cmd.data)
	case cmdStop:
		a.flush()
		for c := range a.clients {
			close(c.Send)
			delete(a.clients, c)
		}
		if cmd.reply != nil {
			cmd.reply <- nil
		}
		return true
	}
	a.lastActivity = time.Now()
	return false
}

func (a *Actor) enqueue(ctx context.Context, cmd command) error {
	select {
	case a.mailbox <- cmd:
		return nil
	case <-a.done:
		return ErrEvicted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitReply waits for the command's reply, treating a shutdown that
// happens first as eviction. The nested receive covers a reply that was
// already sent when done closed.
func (a *Actor) awaitReply(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-a.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrEvicted
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach registers a connection and immediately sends it a full snapshot.
func (a *Actor) Attach(ctx context.Context, c *websocket.Client) error {
	reply := make(chan error, 1)
	if err := a.enqueue(ctx, command{kind: cmdAttach, client: c, reply: reply}); err != nil {
		return err
	}
	return a.awaitReply(ctx, reply)
}

func (a *Actor) Detach(c *websocket.Client) {
	select {
	case a.mailbox <- command{kind: cmdDetach, client: c}:
	case <-a.done:
	}
}

func (a *Actor) SubmitInbound(c *websocket.Client, data []byte) {
	select {
	case a.mailbox <- command{kind: cmdInbound, client: c, data: data}:
	case <-a.done:
	}
}

// Apply runs a mutation on the actor's goroutine, serialized with every
// other event for this session, and waits for the result.
func (a *Actor) Apply(ctx context.Context, fn ApplyFunc) error {
	reply := make(chan error, 1)
	if err := a.enqueue(ctx, command{kind: cmdApply, apply: fn, reply: reply}); err != nil {
		return err
	}
	return a.awaitReply(ctx, reply)
}

// Snapshot returns a deep copy of the current in-memory session.
func (a *Actor) Snapshot(ctx context.Context) (*entity.Session, error) {
	read := make(chan *entity.Session, 1)
	if err := a.enqueue(ctx, command{kind: cmdRead, read: read}); err != nil {
		return nil, err
	}
	select {
	case s := <-read:
		if s == nil {
			return nil, ErrEvicted
		}
		return s, nil
	case <-a.done:
		select {
		case s := <-read:
			if s != nil {
				return s, nil
			}
		default:
		}
		return nil, ErrEvicted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop flushes and terminates the loop. Used on shutdown and delete.
func (a *Actor) Stop(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.enqueue(ctx, command{kind: cmdStop, reply: reply}); err != nil {
		return nil // already stopped
	}
	select {
	case <-reply:
		return nil
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeliverMirrored hands a frame received from another instance to the
// local broadcast set.
func (a *Actor) DeliverMirrored(data []byte) {
	select {
	case a.mailbox <- command{kind: cmdRelay, data: data}:
	case <-a.done:
	}
}

func (a *Actor) attach(c *websocket.Client) {
	a.clients[c] = struct{}{}
	a.sendTo(c, websocket.SessionStateFrame(a.session).Encode())
	a.logger.Info("Actor", "Client attached", map[string]interface{}{
		"session_id": a.sessionId, "connections": len(a.clients),
	})
}

func (a *Actor) detach(c *websocket.Client) {
	if _, ok := a.clients[c]; !ok {
		return
	}
	delete(a.clients, c)
	close(c.Send)
	// Flush when the last viewer leaves so a crash before the next tick
	// loses nothing from this point.
	if len(a.clients) == 0 {
		a.flush()
	}
	a.logger.Info("Actor", "Client detached", map[string]interface{}{
		"session_id": a.sessionId, "connections": len(a.clients),
	})
}

// applyMutation runs fn against a copy and commits only on success, so a
// mutation that fails partway (approve succeeded, advance refused) leaves
// the authoritative session untouched.
func (a *Actor) applyMutation(fn ApplyFunc) error {
	clone := a.snapshotCopy()
	frames, err := fn(clone)
	if err != nil {
		return err
	}
	a.session = clone
	a.dirty = true
	a.flush()
	for _, frame := range frames {
		a.broadcast(frame.Encode())
	}
	return nil
}

func (a *Actor) snapshotCopy() *entity.Session {
	clone := *a.session
	clone.UserInputs = make(map[string]string, len(a.session.UserInputs))
	for k, v := range a.session.UserInputs {
		clone.UserInputs[k] = v
	}
	clone.AgentOutputs = make(map[string]*entity.AgentOutput, len(a.session.AgentOutputs))
	for k, v := range a.session.AgentOutputs {
		o := *v
		clone.AgentOutputs[k] = &o
	}
	clone.ConversationHistory = append([]*entity.Message(nil), a.session.ConversationHistory...)
	return &clone
}

// flush mirrors the in-memory session to durable storage. On failure the
// in-memory state stays authoritative and the write is retried on the next
// interval; loss is bounded by the flush interval.
func (a *Actor) flush() {
	if !a.dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.repo.Save(ctx, a.session); err != nil {
		a.logger.Error("Actor", "Snapshot flush failed", map[string]interface{}{
			"session_id": a.sessionId, "error": err.Error(),
		})
		return
	}
	a.dirty = false
}

func (a *Actor) idleExpired() bool {
	return len(a.clients) == 0 && time.Since(a.lastActivity) > a.idleTimeout
}

func (a *Actor) evict() {
	a.flush()
	if a.onEvicted != nil {
		a.onEvicted(a.sessionId, a)
	}
	a.logger.Info("Actor", "Idle actor evicted", map[string]interface{}{
		"session_id": a.sessionId,
	})
}

// broadcast sends a frame to every attached connection and mirrors it for
// other instances. Dead connections are dropped lazily on send failure.
func (a *Actor) broadcast(data []byte) {
	a.deliverLocal(data)
	if a.mirror != nil {
		a.mirror.Publish(a.sessionId, data)
	}
}

func (a *Actor) deliverLocal(data []byte) {
	for c := range a.clients {
		a.sendTo(c, data)
	}
}

func (a *Actor) sendTo(c *websocket.Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		a.logger.Warn("Actor", "Client send buffer full, dropping connection", map[string]interface{}{
			"session_id": a.sessionId,
		})
		close(c.Send)
		delete(a.clients, c)
	}
}

// broadcastToOthers relays a frame to every connection except the sender.
func (a *Actor) broadcastToOthers(sender *websocket.Client, data []byte) {
	for c := range a.clients {
		if c != sender {
			a.sendTo(c, data)
		}
	}
}
