package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/utils"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// Envelope is the shape of every response body.
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	if data == nil {
		data = fiber.Map{}
	}
	return c.Status(status).JSON(Envelope{
		Success:    status < fiber.StatusBadRequest,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Timestamp:  time.Now().UTC().Format(timestampLayout),
	})
}

func ok(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusOK, message, data)
}

func created(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusCreated, message, data)
}

// ErrorHandler renders any error returned by a handler or middleware in the
// response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		data := fiber.Map{"code": appErr.Kind}
		for k, v := range appErr.Details {
			data[k] = v
		}
		return respond(c, appErr.StatusCode(), appErr.Message, data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return respond(c, fiberErr.Code, fiberErr.Message, nil)
	}

	logger.Log.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return respond(c, fiber.StatusInternalServerError, "Internal server error", nil)
}

// bind parses the body into dst and runs its validation tags.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.New(apperr.KindValidation, "Invalid request body")
	}
	return utils.ValidateStruct(dst)
}
