package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/content"
)

type ContentHandler struct {
	content *content.Lifecycle
}

func NewContentHandler(lc *content.Lifecycle) *ContentHandler {
	return &ContentHandler{content: lc}
}

func (h *ContentHandler) Submit(c *fiber.Ctx) error { return h.apply(c, h.content.Submit) }
func (h *ContentHandler) Approve(c *fiber.Ctx) error { return h.apply(c, h.content.Approve) }
func (h *ContentHandler) Reject(c *fiber.Ctx) error { return h.apply(c, h.content.Reject) }

func (h *ContentHandler) apply(c *fiber.Ctx, fn func(context.Context, int64) error) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := fn(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
