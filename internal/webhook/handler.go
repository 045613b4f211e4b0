// ABOUTME: HTTP entry point for the messaging webhook
// ABOUTME: Handles the GET verification handshake and signed POST events

package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/solarops/ticketbot/internal/dedupe"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/router"
	"github.com/solarops/ticketbot/internal/signature"
)

const maxPayloadBytes = 1 << 20 // 1 MiB

// Handler terminates the webhook: verifies the provider handshake,
// authenticates event signatures, filters duplicates and hands validated
// messages to the router.
type Handler struct {
	router      *router.Router
	tracker     queue.Tracker
	dedupe      *dedupe.Cache
	appSecret   string
	verifyToken string
	logger      *slog.Logger

	// dispatch runs the router call; replaced in tests to run inline
	dispatch func(ctx context.Context, in router.Inbound)
}

// NewHandler creates a webhook handler
func NewHandler(r *router.Router, tracker queue.Tracker, cache *dedupe.Cache, appSecret, verifyToken string) *Handler {
	h := &Handler{
		router:      r,
		tracker:     tracker,
		dedupe:      cache,
		appSecret:   appSecret,
		verifyToken: verifyToken,
		logger:      slog.Default().With("component", "webhook"),
	}
	h.dispatch = h.dispatchAsync
	return h
}

// Verify handles the GET subscription handshake. The provider sends
// hub.mode, hub.verify_token and hub.challenge; a matching token echoes
// the challenge back.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken || challenge == "" {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	h.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive handles POSTed webhook events. The signature is checked against
// the raw body before any parsing; unsigned or mis-signed requests never
// reach the router.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(signature.Header)
	if sig == "" {
		h.logger.Warn("webhook event without signature")
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return
	}
	if !signature.Verify(body, sig, h.appSecret) {
		h.logger.Warn("webhook event with invalid signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	msg, err := ParseMessage(body)
	switch {
	case errors.Is(err, ErrStatusOnly), errors.Is(err, ErrNoMessages):
		// Delivery receipts and empty events are acknowledged and dropped
		writeStatus(w, "ignored")
		return
	case err != nil:
		h.logger.Warn("malformed webhook payload", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if h.dedupe.Seen(msg.ID) {
		h.logger.Debug("duplicate message dropped", "message_id", msg.ID)
		writeStatus(w, "duplicate")
		return
	}

	h.tracker.Enqueue(r.Context(), queue.QueueInboundMessages)

	// Ack fast; routing continues past the webhook response deadline
	h.dispatch(r.Context(), router.Inbound{
		UserID: msg.UserID,
		Name:   msg.Name,
		Type:   msg.Type,
		Body:   msg.Body,
	})

	writeStatus(w, "queued")
}

func (h *Handler) dispatchAsync(ctx context.Context, in router.Inbound) {
	go func() {
		// Detached from the request context so routing survives the ack
		if err := h.router.Process(context.WithoutCancel(ctx), in); err != nil {
			h.logger.Error("message processing failed", "user_id", in.UserID, "error", err)
		}
	}()
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}
