package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

var conversationActions = map[string]models.ConversationStatus{
	"pause":  models.ConversationPaused,
	"resume": models.ConversationActive,
	"close":  models.ConversationClosed,
	"block":  models.ConversationBlocked,
}

type ConversationHandler struct {
	convs *conversation.Lifecycle
}

func NewConversationHandler(convs *conversation.Lifecycle) *ConversationHandler {
	return &ConversationHandler{convs: convs}
}

func (h *ConversationHandler) FlagReview(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req transfer.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if req.Reason == "" {
		req.Reason = "operator:" + GetOperator(c)
	}

	if err := h.convs.FlagReview(c.UserContext(), id, req.Reason); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ConversationHandler) ClearReview(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.convs.ClearReview(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetStatus handles /conversations/:id/:action for pause, resume, close and block.
func (h *ConversationHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	to, ok := conversationActions[c.Params("action")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown action",
		})
	}

	if err := h.convs.SetStatus(c.UserContext(), id, to); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"id": id, "status": to})
}
