package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/actor"
	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/dto"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/memory"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"
	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/events"
	"github.com/philippzach/growth-gpt-sub000/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	content string
}

func (p *fakeProvider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	return &llm.Completion{Content: p.content, TokensUsed: 1, Model: "stub"}, nil
}

func (p *fakeProvider) CompleteStream(ctx context.Context, prompt llm.Prompt, onChunk llm.ChunkFunc) (*llm.Completion, error) {
	if onChunk != nil {
		onChunk(p.content)
	}
	return &llm.Completion{Content: p.content, TokensUsed: 1, Model: "stub"}, nil
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) Publish(ctx context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.EventType())
}

func (r *recordingEvents) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func newTestService(t *testing.T) (ISessionService, *recordingEvents, *memory.SessionRepository) {
	t.Helper()
	repo := memory.NewSessionRepository()
	loader := configloader.NewLoader(t.TempDir())
	orch := workflow.NewOrchestrator(&fakeProvider{content: "generated analysis"}, loader, time.Second, logger.NewNopLogger())
	mgr := actor.NewManager(repo, orch, logger.NewNopLogger(), nil, time.Minute, time.Hour)
	recorder := &recordingEvents{}
	svc := NewSessionService(mgr, repo, orch, loader, recorder, logger.NewNopLogger())
	return svc, recorder, repo
}

func createSession(t *testing.T, svc ISessionService, userId uuid.UUID) uuid.UUID {
	t.Helper()
	res, err := svc.Create(context.Background(), userId, dto.CreateSessionRequest{
		UserInputs: map[string]string{"businessIdea": "an idea"},
	})
	require.NoError(t, err)
	return res.Id
}

func TestCreateAndShow(t *testing.T) {
	svc, recorder, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)

	got, err := svc.Show(context.Background(), userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, got.Status)
	assert.Equal(t, "gtm-consultant", got.CurrentAgent)

	history, err := svc.History(context.Background(), userId, sessionId)
	require.NoError(t, err)
	require.Len(t, history.Messages, 1)
	assert.Contains(t, history.Messages[0].Content, "Welcome")

	assert.Equal(t, []string{events.TypeSessionCreated}, recorder.published())
}

func TestShowForeignSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	sessionId := createSession(t, svc, uuid.New())

	_, err := svc.Show(context.Background(), uuid.New(), sessionId)
	require.Error(t, err)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestShowUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Show(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestApproveAdvancesOnce(t *testing.T) {
	svc, recorder, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.NoError(t, err)

	require.NoError(t, svc.ApproveOutput(ctx, userId, sessionId, "gtm-consultant", dto.ApproveOutputRequest{Feedback: "nice"}))

	got, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, "persona-strategist", got.CurrentAgent)
	assert.Equal(t, 1, got.Progress.CompletedSteps)
	assert.Equal(t, entity.OutputStatusApproved, got.AgentOutputs["gtm-consultant"].Status)

	// Approving again must not advance a second time.
	err = svc.ApproveOutput(ctx, userId, sessionId, "gtm-consultant", dto.ApproveOutputRequest{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindPreconditionFailed, apperror.KindOf(err))

	again, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentStep)
	assert.Equal(t, 1, again.Progress.CompletedSteps)

	assert.Contains(t, recorder.published(), events.TypeOutputApproved)
}

func TestApproveUnknownOutput(t *testing.T) {
	svc, _, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)

	err := svc.ApproveOutput(context.Background(), userId, sessionId, "gtm-consultant", dto.ApproveOutputRequest{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestEditApprovesWithUserContent(t *testing.T) {
	svc, _, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.NoError(t, err)

	require.NoError(t, svc.EditOutput(ctx, userId, sessionId, "gtm-consultant", dto.EditOutputRequest{EditedContent: "my edited version"}))

	got, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	output := got.AgentOutputs["gtm-consultant"]
	assert.Equal(t, "my edited version", output.Content)
	assert.Equal(t, entity.OutputStatusApproved, output.Status)
	assert.Equal(t, 1, got.CurrentStep)
}

func TestRegenerateStaysPending(t *testing.T) {
	svc, recorder, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.NoError(t, err)

	require.NoError(t, svc.RegenerateOutput(ctx, userId, sessionId, "gtm-consultant", dto.RegenerateOutputRequest{Feedback: "sharper"}))

	got, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, entity.OutputStatusPending, got.AgentOutputs["gtm-consultant"].Status)
	assert.Equal(t, 0, got.CurrentStep)
	assert.Contains(t, recorder.published(), events.TypeOutputRegenerated)

	history, err := svc.History(ctx, userId, sessionId)
	require.NoError(t, err)
	last := history.Messages[len(history.Messages)-1]
	assert.Contains(t, last.Content, "regenerated")
}

func TestFullRunPublishesCompletion(t *testing.T) {
	svc, recorder, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	for _, step := range workflow.Sequence {
		_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
		require.NoError(t, err)
		require.NoError(t, svc.ApproveOutput(ctx, userId, sessionId, step.AgentId, dto.ApproveOutputRequest{}))
	}

	got, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, got.Status)
	assert.Equal(t, "", got.CurrentAgent)

	published := recorder.published()
	var completions int
	for _, eventType := range published {
		if eventType == events.TypeSessionCompleted {
			completions++
		}
	}
	assert.Equal(t, 1, completions)

	history, err := svc.History(ctx, userId, sessionId)
	require.NoError(t, err)
	var terminal int
	for _, m := range history.Messages {
		if strings.Contains(m.Content, "Congratulations") {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestPauseResumeGating(t *testing.T) {
	svc, _, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	require.NoError(t, svc.Pause(ctx, userId, sessionId))

	// No generation while paused.
	_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindPreconditionFailed, apperror.KindOf(err))

	// Pausing twice fails the precondition.
	err = svc.Pause(ctx, userId, sessionId)
	require.Error(t, err)
	assert.Equal(t, apperror.KindPreconditionFailed, apperror.KindOf(err))

	require.NoError(t, svc.Resume(ctx, userId, sessionId))
	_, err = svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.NoError(t, err)
}

func TestDeleteRemovesSession(t *testing.T) {
	svc, recorder, repo := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	// Foreign users cannot delete.
	err := svc.Delete(ctx, uuid.New(), sessionId)
	require.Error(t, err)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	require.NoError(t, svc.Delete(ctx, userId, sessionId))

	stored, err := repo.FindById(ctx, sessionId)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = svc.Show(ctx, userId, sessionId)
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	assert.Contains(t, recorder.published(), events.TypeSessionDeleted)
}

func TestFailedAdvanceLeavesRegeneratedOutputPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	userId := uuid.New()
	sessionId := createSession(t, svc, userId)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, userId, sessionId, dto.SendMessageRequest{Content: "go"})
	require.NoError(t, err)
	require.NoError(t, svc.ApproveOutput(ctx, userId, sessionId, "gtm-consultant", dto.ApproveOutputRequest{}))

	// Regenerating the step-0 output makes it pending again while the
	// workflow sits at step 1 with no output of its own yet.
	require.NoError(t, svc.RegenerateOutput(ctx, userId, sessionId, "gtm-consultant", dto.RegenerateOutputRequest{Feedback: "again"}))

	before, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	require.Equal(t, entity.OutputStatusPending, before.AgentOutputs["gtm-consultant"].Status)
	content := before.AgentOutputs["gtm-consultant"].Content

	// Approving it cannot advance (the current agent has nothing to gate
	// on) and must not half-apply: the output stays pending.
	err = svc.ApproveOutput(ctx, userId, sessionId, "gtm-consultant", dto.ApproveOutputRequest{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindPreconditionFailed, apperror.KindOf(err))

	after, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, entity.OutputStatusPending, after.AgentOutputs["gtm-consultant"].Status)
	assert.Nil(t, after.AgentOutputs["gtm-consultant"].ApprovedAt)
	assert.Equal(t, 1, after.CurrentStep)

	// Same discipline for edits: a refused advance keeps the old content.
	err = svc.EditOutput(ctx, userId, sessionId, "gtm-consultant", dto.EditOutputRequest{EditedContent: "replacement"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindPreconditionFailed, apperror.KindOf(err))

	final, err := svc.Show(ctx, userId, sessionId)
	require.NoError(t, err)
	assert.Equal(t, content, final.AgentOutputs["gtm-consultant"].Content)
	assert.Equal(t, entity.OutputStatusPending, final.AgentOutputs["gtm-consultant"].Status)
}

func TestListSummaries(t *testing.T) {
	svc, _, _ := newTestService(t)
	userId := uuid.New()
	first := createSession(t, svc, userId)
	second := createSession(t, svc, userId)
	createSession(t, svc, uuid.New())

	got, err := svc.List(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []uuid.UUID{got[0].Id, got[1].Id}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}
