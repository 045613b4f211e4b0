// ABOUTME: Tests for the dashboard HTTP API
// ABOUTME: Covers login, token enforcement and the protected read endpoints

package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarops/ticketbot/internal/breaker"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/store"
)

const (
	testUsername = "ops"
	testPassword = "correct horse battery staple"
)

func newAPIFixture(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	s := store.NewMemoryStore()
	tr := queue.NewMemoryTracker()
	facade := NewFacade(s, tr, []*breaker.Breaker{breaker.New("odoo", 5, time.Minute)}, 10*time.Minute)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	verifier := NewJWTVerifier([]byte("test-jwt-secret"))
	h := NewHandler(facade, verifier, testUsername, string(hash), time.Hour)
	return h.Routes(), s
}

func login(t *testing.T, api http.Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()

	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)
	return w
}

func bearerToken(t *testing.T, api http.Handler) string {
	t.Helper()

	w := login(t, api, testUsername, testPassword)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLogin_ValidCredentials(t *testing.T) {
	api, _ := newAPIFixture(t)

	w := login(t, api, testUsername, testPassword)

	require.Equal(t, http.StatusOK, w.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestLogin_WrongPassword(t *testing.T) {
	api, _ := newAPIFixture(t)

	w := login(t, api, testUsername, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_WrongUsername(t *testing.T) {
	api, _ := newAPIFixture(t)

	w := login(t, api, "intruder", testPassword)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_MalformedBody(t *testing.T) {
	api, _ := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	api, _ := newAPIFixture(t)

	for _, path := range []string{"/stats", "/sessions", "/sessions/14155550100"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		api.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}

func TestProtectedRoutes_RejectGarbageToken(t *testing.T) {
	api, _ := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStats_WithToken(t *testing.T) {
	api, _ := newAPIFixture(t)
	token := bearerToken(t, api)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Zero(t, stats.ActiveSessions)
	require.Len(t, stats.Breakers, 1)
}

func TestSessionDetail_WithToken(t *testing.T) {
	api, s := newAPIFixture(t)
	token := bearerToken(t, api)

	sess, err := s.GetOrCreate(context.Background(), "14155550100")
	require.NoError(t, err)
	sess.State = store.StateAwaitingQuery
	require.NoError(t, s.Save(context.Background(), sess))

	req := httptest.NewRequest(http.MethodGet, "/sessions/14155550100", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var detail SessionDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "14155550100", detail.UserID)
	assert.Equal(t, string(store.StateAwaitingQuery), detail.State)
}

func TestSessionDetail_NotFound(t *testing.T) {
	api, _ := newAPIFixture(t)
	token := bearerToken(t, api)

	req := httptest.NewRequest(http.MethodGet, "/sessions/14155550999", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetFailed_WithToken(t *testing.T) {
	api, _ := newAPIFixture(t)
	token := bearerToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/queues/ticket_creation/reset-failed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("ops", time.Hour)
	require.NoError(t, err)

	username, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", username)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate("ops", -time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := NewJWTVerifier([]byte("one")).Generate("ops", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier([]byte("two")).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
