package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/innerlight-app/innerlight-progress/internal/application/ledger"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/messaging"
	"github.com/innerlight-app/innerlight-progress/internal/infrastructure/persistence/memory"
	"github.com/innerlight-app/innerlight-progress/internal/interface/http/handlers"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { bus.Close() })

	service, err := ledger.NewService(memory.NewRepository(), bus, ledger.Options{})
	require.NoError(t, err)
	t.Cleanup(service.Close)

	config := DefaultConfig()
	config.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&config)
	}

	server, err := NewServer(config, Dependencies{Ledger: service})
	require.NoError(t, err)
	return server
}

func do(t *testing.T, server *Server, method, path string, body any) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var envelope JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func TestServerRequiresLedger(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestRootAndLiveness(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = do(t, server, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, server, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAwardXPEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodPost, "/api/v1/users/user-1/xp", awardXPRequest{
		Amount: 250,
		Reason: "meditation_session",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]any)
	assert.Equal(t, float64(250), data["amount"])
	assert.Equal(t, true, data["leveled_up"])
	assert.Equal(t, float64(2), data["level"])
	assert.Equal(t, "Seeker", data["rank"])
	assert.Equal(t, "🌱", data["rank_icon"])
}

func TestAwardXPRejectsNegativeAmount(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodPost, "/api/v1/users/user-1/xp", awardXPRequest{Amount: -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_request", envelope.Error.Code)
}

func TestAwardXPRejectsMalformedBody(t *testing.T) {
	server := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/xp", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressRoundTrip(t *testing.T) {
	server := newTestServer(t, nil)

	rec, _ := do(t, server, http.MethodPost, "/api/v1/users/user-1/xp", awardXPRequest{Amount: 150, Reason: "journal", Section: "journal"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := do(t, server, http.MethodGet, "/api/v1/users/user-1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope.Data.(map[string]any)
	assert.Equal(t, float64(150), data["total_xp"])
	assert.Equal(t, float64(2), data["level"])
	assert.Equal(t, float64(50), data["current_level_xp"])
	assert.Equal(t, float64(282), data["next_level_xp"])
	assert.Equal(t, "Seeker", data["rank"])
	assert.Equal(t, "🌱", data["rank_icon"])
	assert.Equal(t, float64(1), data["sections_visited"])
}

func TestSectionEndpointRejectsUnknownKey(t *testing.T) {
	server := newTestServer(t, nil)

	rec, _ := do(t, server, http.MethodGet, "/api/v1/users/user-1/sections/alchemy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogActivityEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodPost, "/api/v1/users/user-1/activities", logActivityRequest{
		Type:    "meditation",
		Section: "meditation",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := envelope.Data.(map[string]any)
	assert.NotEmpty(t, data["entry_id"])

	award := data["award"].(map[string]any)
	assert.Equal(t, float64(25), award["amount"])
	unlocked := award["unlocked_achievements"].([]any)
	assert.Contains(t, unlocked, "first-meditation")
}

func TestCheckInEndpointIsIdempotentPerDay(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodPost, "/api/v1/users/user-1/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := envelope.Data.(map[string]any)
	assert.Equal(t, true, first["started"])
	assert.Equal(t, float64(1), first["count"])

	rec, envelope = do(t, server, http.MethodPost, "/api/v1/users/user-1/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := envelope.Data.(map[string]any)
	assert.Equal(t, false, second["started"])
	assert.Equal(t, float64(1), second["count"])
}

func TestCatalogEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	rec, envelope := do(t, server, http.MethodGet, "/api/v1/achievements", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope.Data.(map[string]any)
	rules := data["achievements"].([]any)
	require.NotEmpty(t, rules)

	first := rules[0].(map[string]any)
	assert.NotEmpty(t, first["id"])
	assert.NotEmpty(t, first["icon"])
}

func TestLeaderboardNotConfigured(t *testing.T) {
	server := newTestServer(t, nil)

	rec, _ := do(t, server, http.MethodGet, "/api/v1/leaderboard", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestFavoritesAndPreferencesEndpoints(t *testing.T) {
	server := newTestServer(t, nil)

	rec, _ := do(t, server, http.MethodPut, "/api/v1/users/user-1/favorites/morning-calm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, server, http.MethodPut, "/api/v1/users/user-1/preferences/theme", setPreferenceRequest{Value: "dark"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, server, http.MethodDelete, "/api/v1/users/user-1/favorites/morning-calm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuthProtectsWrites(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	server := newTestServer(t, func(c *Config) {
		c.APIKeyHashes = []string{string(hash)}
	})

	// Reads stay open.
	rec, _ := do(t, server, http.MethodGet, "/api/v1/users/user-1/progress", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Writes without a key are rejected.
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(awardXPRequest{Amount: 10}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/xp", &buf)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var authErr map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authErr))
	assert.Equal(t, "missing_api_key", authErr["error"])

	// A wrong key is rejected the same way.
	buf.Reset()
	require.NoError(t, json.NewEncoder(&buf).Encode(awardXPRequest{Amount: 10}))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/xp", &buf)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &authErr))
	assert.Equal(t, "invalid_api_key", authErr["error"])

	// The right key passes, via header or bearer token.
	buf.Reset()
	require.NoError(t, json.NewEncoder(&buf).Encode(awardXPRequest{Amount: 10}))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/xp", &buf)
	req.Header.Set("X-API-Key", "secret-key")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	buf.Reset()
	require.NoError(t, json.NewEncoder(&buf).Encode(awardXPRequest{Amount: 10}))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/xp", &buf)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	server := newTestServer(t, nil)

	rec, _ := do(t, server, http.MethodPost, "/api/v1/users/user-1/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, server, http.MethodDelete, "/api/v1/users/user-1/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterBlocksBursts(t *testing.T) {
	server := newTestServer(t, func(c *Config) {
		c.RateLimitPerMinute = 3
	})

	var lastCode int
	for i := 0; i < 4; i++ {
		rec, _ := do(t, server, http.MethodGet, "/live", nil)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/user-1/progress", nil)
	req.Header.Set("Origin", "https://app.innerlight.example")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.innerlight.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthWithChecker(t *testing.T) {
	server := newTestServer(t, nil)
	checker := &stubHealth{healthy: true}
	server.deps.Health = checker

	rec, _ := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.healthy = false
	rec, _ = do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubHealth struct {
	healthy bool
}

func (s *stubHealth) Check(context.Context) handlers.HealthStatus {
	return handlers.HealthStatus{Healthy: s.healthy}
}

func (s *stubHealth) AddCheck(string, handlers.HealthCheckFunc) {}
