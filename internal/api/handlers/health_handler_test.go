package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(fakePinger{err: errors.New("down")}, zap.NewNop())
	app := newTestApp(false)
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp := doRequest(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])

	req, _ = http.NewRequest(http.MethodGet, "/ready", nil)
	resp = doRequest(t, app, req)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Database unavailable", errorMessage(t, resp))
}

func TestReadyWhenDatabaseUp(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, zap.NewNop())
	app := newTestApp(false)
	app.Get("/ready", h.Ready)

	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	resp := doRequest(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
