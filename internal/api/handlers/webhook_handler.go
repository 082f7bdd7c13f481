package handlers

import (
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/queue"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

var knownPlatforms = []models.Platform{
	models.PlatformInstagram, models.PlatformTwitter, models.PlatformFanvue, models.PlatformYoutube,
}

type WebhookHandler struct {
	client   queue.Enqueuer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewWebhookHandler(client queue.Enqueuer, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		client:   client,
		validate: validator.New(),
		logger:   logger.OrDiscard(log).With("component", "webhooks"),
	}
}

// ReceiveMessage accepts a normalized direct message and queues it for
// ingestion.
func (h *WebhookHandler) ReceiveMessage(c *fiber.Ctx) error {
	p := models.Platform(c.Params("platform"))
	if !slices.Contains(knownPlatforms, p) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown platform",
		})
	}

	var msg transfer.InboundMessage
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	msg.Platform = string(p)

	if err := h.validate.Struct(msg); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := queue.EnqueueInbound(c.UserContext(), h.client, msg); err != nil {
		h.logger.Error("failed to enqueue inbound message", "platform", p, "thread_id", msg.ThreadID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Unable to queue message",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}
