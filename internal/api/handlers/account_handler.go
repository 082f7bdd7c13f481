package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

type AccountHandler struct {
	accounts repository.PlatformAccountRepository
	registry *platform.Registry
	logger   *slog.Logger
}

func NewAccountHandler(accounts repository.PlatformAccountRepository, registry *platform.Registry, log *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		registry: registry,
		logger:   logger.OrDiscard(log).With("component", "accounts"),
	}
}

// Pause switches posting and engagement on or off. Fields left out of the
// request keep their value.
func (h *AccountHandler) Pause(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req transfer.PauseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if req.Posting == nil && req.Engagement == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Nothing to change",
		})
	}

	ctx := c.UserContext()
	if req.Posting != nil {
		if err := h.accounts.SetPostingPaused(ctx, id, *req.Posting); err != nil {
			return errorResponse(c, err)
		}
	}
	if req.Engagement != nil {
		if err := h.accounts.SetEngagementPaused(ctx, id, *req.Engagement); err != nil {
			return errorResponse(c, err)
		}
	}

	acc, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	h.logger.Info("account pause changed", "account_id", id, "operator", GetOperator(c),
		"posting_paused", acc.PostingPaused, "engagement_paused", acc.EngagementPaused)
	return c.JSON(acc)
}

// Reconnect clears the account's connection error and drops its cached
// adapter so fresh credentials are used on the next tick.
func (h *AccountHandler) Reconnect(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	acc, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	if acc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	if err := h.accounts.SetConnectionError(ctx, id, ""); err != nil {
		return errorResponse(c, err)
	}
	h.registry.Evict(acc)
	h.logger.Info("account reconnected", "account_id", id, "operator", GetOperator(c))
	return c.SendStatus(fiber.StatusNoContent)
}
