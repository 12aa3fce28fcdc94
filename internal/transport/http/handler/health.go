package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// pingTimeout bounds the store check behind /healthz.
const pingTimeout = 3 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function such as (*sql.DB).PingContext to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store Pinger
	log   *zerolog.Logger
}

func NewHealthHandler(store Pinger, log *zerolog.Logger) *HealthHandler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &HealthHandler{store: store, log: log}
}

// Healthz replies with an empty body: 200 when the store answers, 503 otherwise.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if hasBody(r) || r.URL.RawQuery != "" || r.Header.Get("Content-Type") != "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
