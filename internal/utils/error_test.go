package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, body io.Reader) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}

func TestSendError(t *testing.T) {
	app := fiber.New()
	app.Get("/test-send-error", func(c *fiber.Ctx) error {
		return SendNotFoundError(c, "Media")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test-send-error", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	body := decodeError(t, resp.Body)
	assert.Equal(t, CodeNotFound, body.Code)
	assert.Equal(t, "Media not found", body.Message)
}

func TestSendInsufficientPermission(t *testing.T) {
	app := fiber.New()
	app.Get("/gate", func(c *fiber.Ctx) error {
		return SendInsufficientPermission(c, "requires FULL")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/gate", nil))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, CodeInsufficientPermission, decodeError(t, resp.Body).Code)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("disk on fire")
	})
	app.Get("/coded", func(c *fiber.Ctx) error {
		return NewErrorWithCode(errors.New("bad id"), 400, CodeInvalidInput)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	body := decodeError(t, resp.Body)
	assert.Equal(t, CodeServerError, body.Code)
	assert.NotContains(t, body.Message, "disk on fire")

	resp, err = app.Test(httptest.NewRequest("GET", "/coded", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, CodeInvalidInput, decodeError(t, resp.Body).Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, CodeNotFound, decodeError(t, resp.Body).Code)
}
