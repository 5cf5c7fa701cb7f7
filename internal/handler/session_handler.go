package handler

import (
	"context"
	"net/http"

	"freshcart/internal/model"

	"github.com/rs/zerolog"
)

// Accounts logs the customer in and out.
type Accounts interface {
	Login(ctx context.Context, email, password string) (*model.Profile, error)
	Signup(ctx context.Context, creds model.Credentials) (*model.Profile, error)
	Logout()
	Profile(ctx context.Context) (*model.Profile, error)
}

// SessionHandler handles login, signup and logout.
type SessionHandler struct {
	accounts Accounts
	logger   zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(accounts Accounts, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		accounts: accounts,
		logger:   logger.With().Str("handler", "session").Logger(),
	}
}

// Session handles /api/session: GET returns the profile, POST logs in and
// DELETE logs out.
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profile, err := h.accounts.Profile(r.Context())
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)

	case http.MethodPost:
		var creds model.Credentials
		if err := decodeJSON(r, &creds); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
			return
		}
		if creds.Email == "" || creds.Password == "" {
			writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "email and password are required", h.logger)
			return
		}

		profile, err := h.accounts.Login(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)

	case http.MethodDelete:
		h.accounts.Logout()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
	}
}

// Signup handles POST /api/session/signup requests.
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var creds model.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "email and password are required", h.logger)
		return
	}

	profile, err := h.accounts.Signup(r.Context(), creds)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}
