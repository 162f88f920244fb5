package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/salesledger/internal/http/auth"
	"github.com/MrJamesThe3rd/salesledger/internal/user"
)

type Handler struct {
	users  *user.Service
	auth   *auth.Manager
	logger *zap.Logger
}

func NewHandler(users *user.Service, authn *auth.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{users: users, auth: authn, logger: logger}
}

// AccountRoutes mounts under /accounts.
func (h *Handler) AccountRoutes(r chi.Router) {
	r.Post("/", h.register)
}

// SessionRoutes mounts under /sessions.
func (h *Handler) SessionRoutes(r chi.Router) {
	r.Post("/", h.login)
	r.With(h.auth.Middleware).Delete("/", h.logout)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	Username string `json:"username"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acc, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, user.ErrInvalidUsername):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("register failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	h.writeJSON(w, http.StatusCreated, accountResponse{Username: acc.Username})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			http.Error(w, user.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
			return
		}

		h.logger.Error("login failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IDFromContext(r.Context()); ok {
		h.auth.Logout(id)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
