package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aklabu/e-commerce/internal/apperr"
)

func render(t *testing.T, handler fiber.Handler) (int, map[string]any) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestErrorHandlerAppError(t *testing.T) {
	status, body := render(t, func(c *fiber.Ctx) error {
		return apperr.New(apperr.KindOutOfOrderStep, "Please add your billing address first.").
			With("currentStage", 1).
			With("nextStep", "billing_address")
	})

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, http.StatusConflict, body["statusCode"])
	assert.Equal(t, "Please add your billing address first.", body["message"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "OutOfOrderStep", data["code"])
	assert.EqualValues(t, 1, data["currentStage"])
	assert.Equal(t, "billing_address", data["nextStep"])
}

func TestErrorHandlerFiberError(t *testing.T) {
	status, body := render(t, func(c *fiber.Ctx) error {
		return fiber.ErrRequestEntityTooLarge
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, map[string]any{}, body["data"])
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	status, body := render(t, func(c *fiber.Ctx) error {
		return errors.New("pq: connection refused")
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestOKEnvelope(t *testing.T) {
	status, body := render(t, func(c *fiber.Ctx) error {
		return ok(c, "done", nil)
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{}, body["data"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, body["timestamp"])
}

func TestBindValidation(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/", func(c *fiber.Ctx) error {
		var req otpRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		return ok(c, "ok", nil)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@example.com","otp":"12ab"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
