package controller

import (
	"errors"

	"ai-editor-be/internal/dto"
	"ai-editor-be/internal/pkg/serverutils"
	"ai-editor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	ProcessInstruction(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	CancelPending(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type assistantController struct {
	service     service.IAssistantService
	auth        fiber.Handler
	rateLimiter *serverutils.RateLimiter
}

func NewAssistantController(service service.IAssistantService, auth fiber.Handler, rateLimiter *serverutils.RateLimiter) IAssistantController {
	if auth == nil {
		auth = serverutils.JwtMiddleware
	}
	return &assistantController{service: service, auth: auth, rateLimiter: rateLimiter}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assistant/v1")
	h.Get("/status", c.Status)

	h.Use(c.auth)
	if c.rateLimiter != nil {
		h.Use(c.rateLimiter.Middleware())
	}
	h.Post("/instructions", c.ProcessInstruction)
	h.Delete("/sessions/:id", c.ResetSession)
	h.Delete("/sessions/:id/pending", c.CancelPending)
}

func (c *assistantController) ProcessInstruction(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)

	var req dto.ProcessInstructionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ProcessInstruction(ctx.UserContext(), userId, &req)
	if errors.Is(err, service.ErrInvalidDocument) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process instruction", res))
}

func (c *assistantController) ResetSession(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)
	sessionId := ctx.Params("id")

	if err := c.service.ResetSession(ctx.UserContext(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset session", nil))
}

func (c *assistantController) CancelPending(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx)
	sessionId := ctx.Params("id")

	cancelled, err := c.service.CancelPending(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cancel pending", fiber.Map{"cancelled": cancelled}))
}

func (c *assistantController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get status", c.service.Status(ctx.UserContext())))
}
