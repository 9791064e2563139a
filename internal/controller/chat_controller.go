package controller

import (
	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	Options(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	tokens      *serverutils.SessionTokens
}

func NewChatController(chatService service.IChatService, tokens *serverutils.SessionTokens) IChatController {
	return &chatController{
		chatService: chatService,
		tokens:      tokens,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Get("options", c.Options)

	// Upload and generate act on the session carried by the token.
	h.Post("upload", c.tokens.Middleware(), c.Upload)
	h.Post("generate", c.tokens.Middleware(), c.Generate)
}

func (c *chatController) Upload(ctx *fiber.Ctx) error {
	sessionId := serverutils.CurrentSessionId(ctx)

	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Expected multipart form with files")
	}

	res, err := c.chatService.Upload(ctx.UserContext(), sessionId, form.File["files"], ctx.FormValue("indexer_model"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Files indexed successfully", res))
}

func (c *chatController) Generate(ctx *fiber.Ctx) error {
	sessionId := serverutils.CurrentSessionId(ctx)

	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Generate(ctx.UserContext(), sessionId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate response", res))
}

func (c *chatController) Options(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get chat options", c.chatService.Options()))
}
