package controller

import (
	"github.com/philippzach/growth-gpt-sub000/internal/apperror"
	"github.com/philippzach/growth-gpt-sub000/internal/dto"
	"github.com/philippzach/growth-gpt-sub000/internal/pkg/serverutils"
	"github.com/philippzach/growth-gpt-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	ApproveOutput(ctx *fiber.Ctx) error
	EditOutput(ctx *fiber.Ctx) error
	RegenerateOutput(ctx *fiber.Ctx) error
	ProceedToNext(ctx *fiber.Ctx) error
	Pause(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	sessions := r.Group("/sessions")
	sessions.Use(serverutils.JwtMiddleware)
	sessions.Post("", c.Create)
	sessions.Get(":id", c.Show)
	sessions.Put(":id/approve", c.ApproveOutput)
	sessions.Put(":id/edit", c.EditOutput)
	sessions.Post(":id/regenerate", c.RegenerateOutput)
	sessions.Post(":id/next-agent", c.ProceedToNext)
	sessions.Put(":id/pause", c.Pause)
	sessions.Put(":id/resume", c.Resume)
	sessions.Delete(":id", c.Delete)

	r.Get("/users/:id/sessions", serverutils.JwtMiddleware, c.List)

	chat := r.Group("/chat")
	chat.Use(serverutils.JwtMiddleware)
	chat.Post(":id/message", c.SendMessage)
	chat.Get(":id/history", c.History)
}

func requestIds(ctx *fiber.Ctx) (userId, sessionId uuid.UUID, err error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err = uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, apperror.Unauthorized("invalid user id in token")
	}
	sessionId, err = uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperror.New(apperror.KindInvalidRequest, "invalid session id")
	}
	return userId, sessionId, nil
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return apperror.Unauthorized("invalid user id in token")
	}

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.Create(ctx.Context(), userId, req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return apperror.Unauthorized("invalid user id in token")
	}
	if ctx.Params("id") != userId.String() {
		return apperror.Unauthorized("cannot list sessions of another user")
	}

	res, err := c.sessionService.List(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Show(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *sessionController) History(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.History(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *sessionController) SendMessage(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.SendMessage(ctx.Context(), userId, sessionId, req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *sessionController) ApproveOutput(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	var req dto.ApproveOutputRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.ApproveOutput(ctx.Context(), userId, sessionId, req.OutputId, req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success approve output", fiber.Map{}))
}

func (c *sessionController) EditOutput(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	var req dto.EditOutputRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.EditOutput(ctx.Context(), userId, sessionId, req.OutputId, req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success edit output", fiber.Map{}))
}

func (c *sessionController) RegenerateOutput(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	var req dto.RegenerateOutputRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.RegenerateOutput(ctx.Context(), userId, sessionId, req.OutputId, req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success regenerate output", fiber.Map{}))
}

func (c *sessionController) ProceedToNext(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.ProceedToNext(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success proceed to next agent", fiber.Map{}))
}

func (c *sessionController) Pause(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.Pause(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success pause session", fiber.Map{}))
}

func (c *sessionController) Resume(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.Resume(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resume session", fiber.Map{}))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	userId, sessionId, err := requestIds(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.Delete(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete session", fiber.Map{}))
}
