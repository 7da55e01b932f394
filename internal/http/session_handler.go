package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
)

type SessionHandler struct {
	sessions Sessions
	auth     Authenticator
	timeout  time.Duration
}

func NewSessionHandler(sessions Sessions, auth Authenticator, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		auth:     auth,
		timeout:  timeout,
	}
}

type SignInRequestDTO struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	SessionID     string            `json:"session_id"`
	Authenticated bool              `json:"authenticated"`
	Identity      *session.Identity `json:"identity,omitempty"`
}

// SignIn accepts the token either in the body or as an Authorization bearer.
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		var req SignInRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		token = req.Token
	}
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}

	sessionID := getSessionID(r.Context())
	// the syncer must be listening before the sign-in event fires
	if _, err := h.sessions.Open(ctx, sessionID); err != nil {
		handleError(w, err)
		return
	}

	id, err := h.auth.SignIn(ctx, sessionID, token)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID, Authenticated: true, Identity: &id})
}

// SignOut ends authentication for the session and empties its local cart.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	s, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, err)
		return
	}

	h.auth.SignOut(ctx, sessionID)
	s.Clear(ctx)

	respondJSON(w, http.StatusOK, SessionResponse{SessionID: sessionID})
}
