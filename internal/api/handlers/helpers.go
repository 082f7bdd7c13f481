package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/persona-scheduler/internal/api/middleware"
	"github.com/maheshrc27/persona-scheduler/internal/apperr"
)

func GetOperator(c *fiber.Ctx) string {
	operator, _ := c.Locals(middleware.OperatorKey).(string)
	return operator
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return int64(id), nil
}

// errorResponse maps an error's taxonomy code onto an HTTP status.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apperr.Code(err) {
	case apperr.CodeNotFound:
		status = fiber.StatusNotFound
	case apperr.CodeValidation:
		status = fiber.StatusUnprocessableEntity
	case apperr.CodeStateConflict:
		status = fiber.StatusConflict
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
