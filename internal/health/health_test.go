package health

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashelf/internal/sharing"
	"mediashelf/internal/testutil"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusOK, statusFor(time.Now(), "").Status)

	down := statusFor(time.Now(), "broken")
	assert.Equal(t, StatusDown, down.Status)
	assert.Equal(t, "broken", down.Message)

	slow := statusFor(time.Now().Add(-time.Second), "")
	assert.Equal(t, StatusDegraded, slow.Status)
}

func TestHealthRoute(t *testing.T) {
	db, err := sharing.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sharing.Close(db) })

	store := testutil.NewStore(t)
	app := fiber.New()
	RegisterHealthRoutes(app, &Checker{Store: store, DB: db})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, StatusOK, body.Status)
	assert.Equal(t, StatusOK, body.Library.Status)
	assert.Equal(t, StatusOK, body.DB.Status)
	require.NotNil(t, body.Media)
	assert.Zero(t, body.Media.Media)
}

func TestHealthRoute_Down(t *testing.T) {
	store := testutil.NewStore(t)
	require.NoError(t, os.RemoveAll(store.Root()))

	app := fiber.New()
	RegisterHealthRoutes(app, &Checker{Store: store})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, StatusDown, body.Status)
	assert.Equal(t, StatusDown, body.Library.Status)
	assert.Equal(t, StatusDown, body.DB.Status)
	assert.Nil(t, body.Media)
}
