package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/middleware"
	"github.com/yg10008/GuildHire-YG/internal/models"
	"github.com/yg10008/GuildHire-YG/internal/service"
)

// ChatAPI is the service surface the HTTP layer depends on.
type ChatAPI interface {
	InitiateOrGet(ctx context.Context, requester models.AccountRef, participants []models.AccountRef) (*models.Conversation, string, error)
	List(ctx context.Context, requester models.AccountRef) ([]*models.Conversation, error)
	Get(ctx context.Context, requester models.AccountRef, conversationID primitive.ObjectID) (*models.Conversation, error)
	Send(ctx context.Context, requester models.AccountRef, conversationID primitive.ObjectID, content string) (*models.Conversation, *models.Message, error)
}

type ChatHandler struct {
	svc ChatAPI
	log *zap.SugaredLogger
}

func NewChatHandler(svc ChatAPI, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

type participantBody struct {
	AccountID string             `json:"accountId"`
	Kind      models.AccountKind `json:"kind"`
}

type createChatBody struct {
	Participants []participantBody `json:"participants"`
}

type sendMessageBody struct {
	Content string `json:"content"`
}

// CreateChat handles POST /chats. Creation is idempotent per participant
// pair: an existing conversation comes back with status "existing".
func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	requester, ok := middleware.Identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	var body createChatBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request body"})
	}
	if len(body.Participants) != 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "participants must be an array of exactly 2 accounts",
		})
	}

	refs := make([]models.AccountRef, 0, 2)
	for _, p := range body.Participants {
		id, err := primitive.ObjectIDFromHex(p.AccountID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid participant account id"})
		}
		refs = append(refs, models.AccountRef{AccountID: id, Kind: p.Kind})
	}

	conv, status, err := h.svc.InitiateOrGet(c.Context(), requester, refs)
	if err != nil {
		return h.fail(c, err, "create chat")
	}
	code := fiber.StatusOK
	if status == service.StatusCreated {
		code = fiber.StatusCreated
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "chat": conv})
}

// ListChats handles GET /chats.
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	requester, ok := middleware.Identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}
	convs, err := h.svc.List(c.Context(), requester)
	if err != nil {
		return h.fail(c, err, "list chats")
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	return c.JSON(fiber.Map{"chats": convs})
}

// GetChat handles GET /chats/:chatId.
func (h *ChatHandler) GetChat(c *fiber.Ctx) error {
	requester, ok := middleware.Identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}
	id, err := primitive.ObjectIDFromHex(c.Params("chatId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Chat not found"})
	}
	conv, err := h.svc.Get(c.Context(), requester, id)
	if err != nil {
		return h.fail(c, err, "get chat")
	}
	return c.JSON(fiber.Map{"chat": conv})
}

// SendMessage handles POST /chats/:chatId/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	requester, ok := middleware.Identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}
	id, err := primitive.ObjectIDFromHex(c.Params("chatId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Chat not found"})
	}

	var body sendMessageBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request body"})
	}

	conv, msg, err := h.svc.Send(c.Context(), requester, id, body.Content)
	if err != nil {
		return h.fail(c, err, "send message")
	}
	return c.JSON(fiber.Map{"chat": conv, "newMessage": msg})
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Unauthorized to access this chat"})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Chat not found"})
	case errors.Is(err, apperr.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	default:
		h.log.Errorw(op+" failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
