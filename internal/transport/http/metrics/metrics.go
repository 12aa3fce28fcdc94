// Package metrics defines the Prometheus metrics of the accounts API and the
// HTTP middleware that records them. Metrics register with the default
// registry at package load.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts served requests.
// Labels:
//   - route: the chi route pattern, or "unmatched"
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route and status.",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Account metrics ───────────────────────────────────────────────────────────

var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of accounts created.",
	},
)

// VerificationsTotal counts verification link redemptions.
// Label:
//   - result: "verified", "invalid" or "error"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of verification attempts, by result.",
	},
	[]string{"result"},
)

// VerificationDeliveriesTotal counts attempts to hand a link to the delivery backend.
// Label:
//   - result: "sent" or "failed"
var VerificationDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_deliveries_total",
		Help:      "Total number of verification link deliveries, by result.",
	},
	[]string{"result"},
)

// ImageOperationsTotal counts profile image operations.
// Labels:
//   - op: "attach", "get" or "delete"
//   - result: "ok" or the HTTP status class of the failure ("4xx", "5xx")
var ImageOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_operations_total",
		Help:      "Total number of profile image operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// Instrument records HTTPRequestsTotal and HTTPRequestDuration for every request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ResultClass collapses an HTTP status into the result label used by
// ImageOperationsTotal.
func ResultClass(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type deliverer interface {
	Deliver(ctx context.Context, email, link string) error
}

// Deliverer counts deliveries made through the wrapped backend.
type Deliverer struct {
	next deliverer
}

func CountDeliveries(next deliverer) *Deliverer {
	return &Deliverer{next: next}
}

func (d *Deliverer) Deliver(ctx context.Context, email, link string) error {
	if err := d.next.Deliver(ctx, email, link); err != nil {
		VerificationDeliveriesTotal.WithLabelValues("failed").Inc()
		return err
	}
	VerificationDeliveriesTotal.WithLabelValues("sent").Inc()
	return nil
}
