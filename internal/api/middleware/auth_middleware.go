package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/pkg/utils"
)

const OperatorKey = "operator"

type AuthMiddleware struct {
	secretKey     string
	webhookSecret string
	logger        *slog.Logger
}

func NewAuthMiddleware(secretKey, webhookSecret string, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		logger:        logger.OrDiscard(log).With("component", "auth"),
	}
}

// AuthMiddleware admits requests carrying a valid operator token as a bearer
// header and stores the operator name in the request locals.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			m.logger.Info("token validation failed", "ip", c.IP(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(OperatorKey, claims.Operator)
		return c.Next()
	}
}

// WebhookMiddleware checks the shared webhook token when one is configured.
func (m *AuthMiddleware) WebhookMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.webhookSecret == "" {
			return c.Next()
		}
		got := c.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.webhookSecret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook token",
			})
		}
		return c.Next()
	}
}
