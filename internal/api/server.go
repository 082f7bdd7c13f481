// Package api exposes the operator HTTP surface: platform webhooks, review
// endpoints, health and metrics.
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maheshrc27/persona-scheduler/internal/api/handlers"
	"github.com/maheshrc27/persona-scheduler/internal/api/middleware"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/queue"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
)

type Deps struct {
	SecretKey     string
	WebhookSecret string
	Enqueuer      queue.Enqueuer
	Accounts      repository.PlatformAccountRepository
	Registry      *platform.Registry
	Content       *content.Lifecycle
	Conversations *conversation.Lifecycle
	// Gatherer defaults to the Prometheus default registry.
	Gatherer prometheus.Gatherer
	// AccessLog enables fiber's request logger.
	AccessLog bool
	Logger    *slog.Logger
}

func NewServer(d Deps) *fiber.App {
	log := logger.OrDiscard(d.Logger).With("component", "http")
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			} else {
				log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			}
			msg := err.Error()
			if code == fiber.StatusInternalServerError {
				msg = "Internal error"
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}

	app.Get("/health", handlers.Health)
	app.Get("/metrics", handlers.Metrics(d.Gatherer))

	auth := middleware.NewAuthMiddleware(d.SecretKey, d.WebhookSecret, d.Logger)

	webhooks := handlers.NewWebhookHandler(d.Enqueuer, d.Logger)
	app.Post("/webhooks/:platform/messages", auth.WebhookMiddleware(), webhooks.ReceiveMessage)

	api := app.Group("/api")
	api.Use(auth.AuthMiddleware())

	convs := handlers.NewConversationHandler(d.Conversations)
	api.Post("/conversations/:id/review", convs.FlagReview)
	api.Delete("/conversations/:id/review", convs.ClearReview)
	api.Post("/conversations/:id/:action", convs.SetStatus)

	accounts := handlers.NewAccountHandler(d.Accounts, d.Registry, d.Logger)
	api.Post("/accounts/:id/pause", accounts.Pause)
	api.Post("/accounts/:id/reconnect", accounts.Reconnect)

	contents := handlers.NewContentHandler(d.Content)
	api.Post("/content/:id/submit", contents.Submit)
	api.Post("/content/:id/approve", contents.Approve)
	api.Post("/content/:id/reject", contents.Reject)

	return app
}
