package handler

import (
	"fmt"
	"net/http"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/metrics"
	"github.com/go-account-api/internal/transport/http/middleware"
)

// maxJSONBody bounds account request bodies.
const maxJSONBody = 1 << 20

// AccountHandler handles registration and the authenticated profile.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		WriteError(w, http.StatusBadRequest, "registration does not accept credentials")
		return
	}
	if !isJSON(r) {
		writeServiceError(w, fmt.Errorf("content type must be application/json: %w", domain.ErrUnsupportedMedia))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req domain.CreateAccountRequest
	if err := decodeStrict(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.RegistrationsTotal.Inc()
	writeJSON(w, http.StatusCreated, created)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if hasBody(r) || r.URL.RawQuery != "" {
		WriteError(w, http.StatusBadRequest, "request must not carry a body or query")
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), a)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !isJSON(r) {
		writeServiceError(w, fmt.Errorf("content type must be application/json: %w", domain.ErrUnsupportedMedia))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req domain.UpdateAccountRequest
	if err := decodeStrict(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.UpdateProfile(r.Context(), a, req); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
