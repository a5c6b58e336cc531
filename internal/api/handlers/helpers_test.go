package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"receipt-keeper/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testUserID = uuid.MustParse("6f1c2d9e-3b4a-4c5d-8e7f-9a0b1c2d3e4f")

func newTestApp(authenticated bool) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	if authenticated {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals(middleware.UserIDKey, testUserID)
			return c.Next()
		})
	}
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func jsonRequest(method, target, body string) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	msg, _ := decodeBody(t, resp)["error"].(string)
	return msg
}
