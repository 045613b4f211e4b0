// ABOUTME: HTTP handlers for the dashboard API with JWT-protected routes
// ABOUTME: Login issues tokens; all other routes require a Bearer token

package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarops/ticketbot/internal/store"
)

// Handler serves the dashboard API
type Handler struct {
	facade   *Facade
	verifier *JWTVerifier
	username string
	passHash string
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewHandler creates a dashboard handler. passHash is a bcrypt hash of the
// dashboard user's password.
func NewHandler(facade *Facade, verifier *JWTVerifier, username, passHash string, tokenTTL time.Duration) *Handler {
	return &Handler{
		facade:   facade,
		verifier: verifier,
		username: username,
		passHash: passHash,
		tokenTTL: tokenTTL,
		logger:   slog.Default().With("component", "dashboard"),
	}
}

// Routes mounts the dashboard API on a chi router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/stats", h.stats)
		r.Get("/sessions", h.sessions)
		r.Get("/sessions/{userID}", h.session)
		r.Post("/queues/{queue}/reset-failed", h.resetFailed)
	})

	return r
}

// requireAuth rejects requests without a valid Bearer token
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if _, err := h.verifier.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Compare the password hash even when the username is wrong so both
	// failure paths take comparable time.
	hashErr := bcrypt.CompareHashAndPassword([]byte(h.passHash), []byte(req.Password))
	if req.Username != h.username || hashErr != nil {
		h.logger.Warn("failed login attempt", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.verifier.Generate(req.Username, h.tokenTTL)
	if err != nil {
		h.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenTTL),
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.facade.Sessions(r.Context())
	if err != nil {
		h.logger.Error("session list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	detail, err := h.facade.Session(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("session detail failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) resetFailed(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")

	if err := h.facade.ResetFailed(r.Context(), queueName); err != nil {
		h.logger.Error("reset failed counter", "queue", queueName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("failed counter reset", "queue", queueName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
