package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippzach/growth-gpt-sub000/internal/actor"
	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/dto"
	"github.com/philippzach/growth-gpt-sub000/internal/entity"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/internal/repository/contract"
	"github.com/philippzach/growth-gpt-sub000/internal/websocket"
	"github.com/philippzach/growth-gpt-sub000/internal/workflow"
	"github.com/philippzach/growth-gpt-sub000/pkg/configloader"
	"github.com/philippzach/growth-gpt-sub000/pkg/events"

	"github.com/google/uuid"
)

// ISessionService is the HTTP-side surface over sessions. Every mutation
// routes through the session's actor so REST calls and websocket traffic
// never race on the same state.
type ISessionService interface {
	Create(ctx context.Context, userId uuid.UUID, req dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	Show(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]dto.SessionSummaryResponse, error)
	History(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error)
	SendMessage(ctx context.Context, userId, sessionId uuid.UUID, req dto.SendMessageRequest) (*entity.Message, error)
	ApproveOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.ApproveOutputRequest) error
	EditOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.EditOutputRequest) error
	RegenerateOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.RegenerateOutputRequest) error
	ProceedToNext(ctx context.Context, userId, sessionId uuid.UUID) error
	Pause(ctx context.Context, userId, sessionId uuid.UUID) error
	Resume(ctx context.Context, userId, sessionId uuid.UUID) error
	Delete(ctx context.Context, userId, sessionId uuid.UUID) error
}

type sessionService struct {
	manager      *actor.Manager
	repo         contract.SessionRepository
	orchestrator *workflow.Orchestrator
	loader       *configloader.Loader
	eventService IEventService
	logger       logger.ILogger
}

func NewSessionService(
	manager *actor.Manager,
	repo contract.SessionRepository,
	orchestrator *workflow.Orchestrator,
	loader *configloader.Loader,
	eventService IEventService,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		manager:      manager,
		repo:         repo,
		orchestrator: orchestrator,
		loader:       loader,
		eventService: eventService,
		logger:       log,
	}
}

func (s *sessionService) Create(ctx context.Context, userId uuid.UUID, req dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	session := workflow.NewSession(userId, req.WorkflowId, req.UserInputs)
	session.AppendMessage(entity.NewSystemMessage(session.Id, welcomeMessage(s.loader)))

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, apperror.PersistenceFailure(err)
	}
	s.manager.Register(session)

	s.eventService.Publish(ctx, events.SessionCreated(session.Id, userId.String(), session.WorkflowId))

	s.logger.Info("SessionService", "Session created", map[string]interface{}{
		"session_id": session.Id, "user_id": userId, "workflow_id": session.WorkflowId,
	})
	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *sessionService) Show(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.ownedSnapshot(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	return sessionToResponse(session), nil
}

func (s *sessionService) List(ctx context.Context, userId uuid.UUID) ([]dto.SessionSummaryResponse, error) {
	sessions, err := s.repo.FindAllByUserId(ctx, userId)
	if err != nil {
		return nil, apperror.PersistenceFailure(err)
	}
	summaries := make([]dto.SessionSummaryResponse, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, dto.SessionSummaryResponse{
			Id:           session.Id,
			WorkflowId:   session.WorkflowId,
			Status:       session.Status,
			CurrentAgent: session.CurrentAgent,
			Progress:     session.Progress,
			CreatedAt:    session.CreatedAt,
			LastActive:   session.LastActive,
		})
	}
	return summaries, nil
}

func (s *sessionService) History(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error) {
	session, err := s.ownedSnapshot(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	return &dto.SessionHistoryResponse{
		SessionId: session.Id,
		Messages:  session.ConversationHistory,
	}, nil
}

// SendMessage is the non-streaming fallback for clients without a websocket
// connection. The generation still runs on the actor goroutine, so it is
// serialized with streamed traffic; attached clients see the result frames.
func (s *sessionService) SendMessage(ctx context.Context, userId, sessionId uuid.UUID, req dto.SendMessageRequest) (*entity.Message, error) {
	var reply *entity.Message
	err := s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if session.Status != entity.SessionStatusActive {
			return nil, apperror.PreconditionFailed("session is not active")
		}
		userMsg := entity.NewUserMessage(session.Id, req.Content)
		session.AppendMessage(userMsg)

		msg, genErr := s.orchestrator.ProcessUserMessage(ctx, session, userMsg, nil)
		if genErr != nil {
			if msg != nil {
				session.AppendMessage(msg)
			}
			return nil, genErr
		}
		session.AppendMessage(msg)
		reply = msg
		return []websocket.Frame{
			{Type: websocket.FrameNewMessage, Message: userMsg},
			{Type: websocket.FrameNewMessage, Message: msg},
			websocket.SessionStateFrame(session),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ApproveOutput marks an agent output approved and advances the workflow.
// Approving an already-approved output fails the precondition; the
// advancement it caused is not repeated.
func (s *sessionService) ApproveOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.ApproveOutputRequest) error {
	var completed bool
	var quality float64
	err := s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		output := session.Output(agentId)
		if output == nil {
			return nil, apperror.NotFound("agent output")
		}
		if output.Status == entity.OutputStatusApproved {
			return nil, apperror.PreconditionFailed("output is already approved")
		}

		output.Approve(req.Feedback)
		if err := s.orchestrator.MoveToNextAgent(session); err != nil {
			return nil, err
		}
		quality = output.QualityScore
		completed = session.Status == entity.SessionStatusCompleted

		frames := []websocket.Frame{
			{Type: websocket.FrameOutputApproved, AgentId: agentId},
		}
		if !completed {
			transition := entity.NewSystemMessage(session.Id, s.transitionMessage(agentId, session.CurrentAgent))
			session.AppendMessage(transition)
			frames = append(frames, websocket.Frame{Type: websocket.FrameNewMessage, Message: transition})
		}
		frames = append(frames, websocket.SessionStateFrame(session))
		return frames, nil
	})
	if err != nil {
		return err
	}

	s.eventService.Publish(ctx, events.OutputApproved(sessionId, agentId, quality))
	if completed {
		s.eventService.Publish(ctx, events.SessionCompleted(sessionId, userId.String(), workflow.TotalSteps()))
	}
	return nil
}

// EditOutput replaces the output content with the user's edit, approves it
// and advances, all as one serialized mutation.
func (s *sessionService) EditOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.EditOutputRequest) error {
	var completed bool
	err := s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		output := session.Output(agentId)
		if output == nil {
			return nil, apperror.NotFound("agent output")
		}
		if output.Status == entity.OutputStatusApproved {
			return nil, apperror.PreconditionFailed("output is already approved")
		}

		output.Content = req.EditedContent
		output.Approve("edited by user")
		if err := s.orchestrator.MoveToNextAgent(session); err != nil {
			return nil, err
		}
		completed = session.Status == entity.SessionStatusCompleted

		frames := []websocket.Frame{
			{Type: websocket.FrameOutputEdited, AgentId: agentId},
		}
		if !completed {
			transition := entity.NewSystemMessage(session.Id, s.transitionMessage(agentId, session.CurrentAgent))
			session.AppendMessage(transition)
			frames = append(frames, websocket.Frame{Type: websocket.FrameNewMessage, Message: transition})
		}
		frames = append(frames, websocket.SessionStateFrame(session))
		return frames, nil
	})
	if err != nil {
		return err
	}

	if completed {
		s.eventService.Publish(ctx, events.SessionCompleted(sessionId, userId.String(), workflow.TotalSteps()))
	}
	return nil
}

// RegenerateOutput re-runs the agent with feedback. The replacement stays
// pending and the workflow position does not move.
func (s *sessionService) RegenerateOutput(ctx context.Context, userId, sessionId uuid.UUID, agentId string, req dto.RegenerateOutputRequest) error {
	err := s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if _, err := s.orchestrator.RegenerateAgentOutput(ctx, session, agentId, req.Feedback, nil); err != nil {
			return nil, err
		}
		notice := entity.NewSystemMessage(session.Id,
			fmt.Sprintf("%s has regenerated the output based on your feedback. Please review it.", s.displayName(agentId)))
		session.AppendMessage(notice)
		return []websocket.Frame{
			{Type: websocket.FrameNewMessage, Message: notice},
			websocket.SessionStateFrame(session),
		}, nil
	})
	if err != nil {
		return err
	}

	s.eventService.Publish(ctx, events.OutputRegenerated(sessionId, agentId))
	return nil
}

func (s *sessionService) ProceedToNext(ctx context.Context, userId, sessionId uuid.UUID) error {
	var completed bool
	err := s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if err := s.orchestrator.MoveToNextAgent(session); err != nil {
			return nil, err
		}
		completed = session.Status == entity.SessionStatusCompleted

		frames := make([]websocket.Frame, 0, 2)
		if !completed {
			notice := entity.NewSystemMessage(session.Id,
				fmt.Sprintf("Moved on to %s.", s.displayName(session.CurrentAgent)))
			session.AppendMessage(notice)
			frames = append(frames, websocket.Frame{Type: websocket.FrameNewMessage, Message: notice})
		}
		frames = append(frames, websocket.SessionStateFrame(session))
		return frames, nil
	})
	if err != nil {
		return err
	}

	if completed {
		s.eventService.Publish(ctx, events.SessionCompleted(sessionId, userId.String(), workflow.TotalSteps()))
	}
	return nil
}

func (s *sessionService) Pause(ctx context.Context, userId, sessionId uuid.UUID) error {
	return s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if session.Status != entity.SessionStatusActive {
			return nil, apperror.PreconditionFailed("only active sessions can be paused")
		}
		session.Status = entity.SessionStatusPaused
		session.Touch()
		return []websocket.Frame{websocket.SessionStateFrame(session)}, nil
	})
}

func (s *sessionService) Resume(ctx context.Context, userId, sessionId uuid.UUID) error {
	return s.apply(ctx, userId, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if session.Status != entity.SessionStatusPaused {
			return nil, apperror.PreconditionFailed("only paused sessions can be resumed")
		}
		session.Status = entity.SessionStatusActive
		session.Touch()
		return []websocket.Frame{websocket.SessionStateFrame(session)}, nil
	})
}

func (s *sessionService) Delete(ctx context.Context, userId, sessionId uuid.UUID) error {
	if _, err := s.ownedSnapshot(ctx, userId, sessionId); err != nil {
		return err
	}
	if err := s.manager.Remove(ctx, sessionId); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sessionId); err != nil {
		return apperror.PersistenceFailure(err)
	}

	s.eventService.Publish(ctx, events.SessionDeleted(sessionId, userId.String()))
	return nil
}

// apply routes a mutation through the actor with the ownership check run
// inside the serialized section.
func (s *sessionService) apply(ctx context.Context, userId, sessionId uuid.UUID, fn actor.ApplyFunc) error {
	return s.manager.Apply(ctx, sessionId, func(session *entity.Session) ([]websocket.Frame, error) {
		if session.UserId != userId {
			return nil, apperror.Unauthorized("session belongs to another user")
		}
		return fn(session)
	})
}

func (s *sessionService) ownedSnapshot(ctx context.Context, userId, sessionId uuid.UUID) (*entity.Session, error) {
	session, err := s.manager.Snapshot(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.UserId != userId {
		return nil, apperror.Unauthorized("session belongs to another user")
	}
	return session, nil
}

func (s *sessionService) displayName(agentId string) string {
	if cfg, err := s.loader.LoadAgentConfig(agentId); err == nil {
		return cfg.DisplayName
	}
	return agentId
}

func (s *sessionService) transitionMessage(approvedAgentId, nextAgentId string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great! %s's output has been approved. ", s.displayName(approvedAgentId))
	fmt.Fprintf(&b, "%s is up next. Send a message when you're ready to continue.", s.displayName(nextAgentId))
	return b.String()
}

func welcomeMessage(loader *configloader.Loader) string {
	name := "your GTM consultant"
	if cfg, err := loader.LoadAgentConfig(workflow.Sequence[0].AgentId); err == nil {
		name = cfg.DisplayName + ", your " + cfg.Name
	}
	return fmt.Sprintf(
		"Welcome to your growth strategy session! You'll work through %d specialists, starting with %s. "+
			"Describe your business idea to begin.", workflow.TotalSteps(), name)
}

func sessionToResponse(session *entity.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:           session.Id,
		UserId:       session.UserId.String(),
		WorkflowId:   session.WorkflowId,
		Status:       session.Status,
		CurrentAgent: session.CurrentAgent,
		CurrentStep:  session.CurrentStep,
		UserInputs:   session.UserInputs,
		AgentOutputs: session.AgentOutputs,
		Progress:     session.Progress,
		CreatedAt:    session.CreatedAt,
		LastActive:   session.LastActive,
	}
}
