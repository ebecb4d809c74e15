package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/store"
)

type memBackend struct {
	data []byte
}

func (b *memBackend) Load(ctx context.Context) ([]byte, error) {
	if b.data == nil {
		return nil, persistence.ErrNoSnapshot
	}
	return b.data, nil
}

func (b *memBackend) Save(ctx context.Context, data []byte) error {
	b.data = append([]byte(nil), data...)
	return nil
}

const operatorKey = "operator-key"

func newTestApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	logger := zap.NewNop()
	s, err := store.New(context.Background(), &memBackend{}, logger)
	require.NoError(t, err)

	keyHash, err := auth.HashKey(operatorKey, 4)
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", 30)
	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("support-desk", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth: handlers.NewAuthHandler(tokens, config.AuthConfig{
			JWTSecret:       "test-secret",
			OperatorKeyHash: keyHash,
		}),
		Tickets:        handlers.NewTicketsHandler(s),
		Stats:          handlers.NewStatsHandler(s),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return app, s
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/auth/login", "",
		map[string]string{"key": operatorKey})
	require.Equal(t, http.StatusOK, status)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	token, ok := data["token"].(string)
	require.True(t, ok)
	return token
}

func TestHealthLive(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}

func TestLogin(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("issues a token for the operator key", func(t *testing.T) {
		token := login(t, app)
		assert.NotEmpty(t, token)
	})

	t.Run("rejects a wrong key", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/auth/login", "",
			map[string]string{"key": "guess"})
		assert.Equal(t, http.StatusUnauthorized, status)
		errBody, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "UNAUTHORIZED", errBody["code"])
	})

	t.Run("rejects an empty key", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPost, "/auth/login", "",
			map[string]string{})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tickets", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTicketListing(t *testing.T) {
	app, s := newTestApp(t)
	token := login(t, app)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "user-1", "venue-1", "billing question")
	require.NoError(t, err)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/tickets", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tickets/venue/venue-1", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(ticket.ID), data["id"])
	assert.Equal(t, "billing question", data["reason"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tickets/venue/venue-none", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTranscriptEndpoints(t *testing.T) {
	app, s := newTestApp(t)
	token := login(t, app)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)
	record, err := s.CreateTranscript(ctx, ticket.ID, "transcript body", "user-1")
	require.NoError(t, err)

	path := fmt.Sprintf("/api/v1/tickets/%d/transcript", ticket.ID)
	status, body := doJSON(t, app, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, record.ID, data["id"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/transcripts/"+record.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, app, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tickets/abc/transcript", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatsEndpoints(t *testing.T) {
	app, s := newTestApp(t)
	token := login(t, app)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, "user-1", "venue-1", "")
	require.NoError(t, err)
	_, _, err = s.RecordSatisfaction(ctx, "venue-1", domain.SatisfactionVerySatisfied)
	require.NoError(t, err)
	_, _, err = s.CloseTicket(ctx, "venue-1", "staff-1")
	require.NoError(t, err)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/stats/satisfaction", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(5), data["average"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/stats/satisfaction?month=13&year=2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/stats/monthly", token, nil)
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total_created"])
	assert.Equal(t, float64(1), data["total_closed"])
}

func TestAuditLogEndpoint(t *testing.T) {
	app, s := newTestApp(t)
	token := login(t, app)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendAuditLog(ctx, domain.AuditTicketCreated, "user-1",
			map[string]any{"seq": i}))
	}

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/audit-logs?limit=2", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/audit-logs?limit=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
