package handler

import (
	"net/http"

	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/transport/http/metrics"
)

// VerifyHandler redeems emailed verification links.
type VerifyHandler struct {
	svc verification.Service
}

func NewVerifyHandler(svc verification.Service) *VerifyHandler { return &VerifyHandler{svc: svc} }

func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		WriteError(w, http.StatusBadRequest, "token is required")
		return
	}
	if _, err := h.svc.Verify(r.Context(), token); err != nil {
		status := writeServiceError(w, err)
		result := "invalid"
		if status >= http.StatusInternalServerError {
			result = "error"
		}
		metrics.VerificationsTotal.WithLabelValues(result).Inc()
		return
	}
	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email verified"})
}
