package controller

import (
	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Switch(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	IndexedFiles(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
	tokens         *serverutils.SessionTokens
}

func NewSessionController(sessionService service.ISessionService, tokens *serverutils.SessionTokens) ISessionController {
	return &sessionController{
		sessionService: sessionService,
		tokens:         tokens,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Put(":id", c.Rename)
	h.Delete(":id", c.Delete)
	h.Post(":id/switch", c.Switch)
	h.Get(":id/indexed-files", c.IndexedFiles)
	h.Get(":id/history", c.History)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Create(ctx.UserContext())
	if err != nil {
		return err
	}

	token, err := c.tokens.SetCookie(ctx, res.SessionId)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("New session started", &dto.NewSessionResponse{
		SessionId:   res.SessionId,
		SessionName: res.SessionName,
		Token:       token,
	}))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	res, err := c.sessionService.List(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Show(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) Switch(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Switch(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	token, err := c.tokens.SetCookie(ctx, res.SessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Switched session", &dto.NewSessionResponse{
		SessionId:   res.SessionId,
		SessionName: res.SessionName,
		Token:       token,
	}))
}

func (c *sessionController) Rename(ctx *fiber.Ctx) error {
	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.Rename(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session name updated", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.sessionService.Delete(ctx.UserContext(), id); err != nil {
		return err
	}

	// Drop the cookie if it pointed at the deleted session.
	if tok := ctx.Cookies(serverutils.SessionCookieName); tok != "" {
		if current, err := c.tokens.Parse(tok); err == nil && current == id {
			c.tokens.ClearCookie(ctx)
		}
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Session deleted successfully", nil))
}

func (c *sessionController) IndexedFiles(ctx *fiber.Ctx) error {
	res, err := c.sessionService.IndexedFiles(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get indexed files", res))
}

func (c *sessionController) History(ctx *fiber.Ctx) error {
	res, err := c.sessionService.History(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}
