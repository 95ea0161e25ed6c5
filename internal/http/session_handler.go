package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/megamart-storefront/internal/session"
	"github.com/sirupsen/logrus"
)

type SessionService interface {
	Login(ctx context.Context, username, password string) (*session.Identity, error)
	SignUp(ctx context.Context, reg session.Registration) error
	Profile(ctx context.Context) (*session.Profile, error)
	Logout(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

type SessionHandler struct {
	sessions SessionService
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewSessionHandler(sessions SessionService, timeout time.Duration, log logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, timeout: timeout, log: log}
}

type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	identity, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, identity)
}

func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var reg session.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.sessions.SignUp(ctx, reg); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"username": strings.TrimSpace(reg.Username)})
}

func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	profile, err := h.sessions.Profile(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Logout(ctx); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
