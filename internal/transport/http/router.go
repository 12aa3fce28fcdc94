package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/transport/http/handler"
	"github.com/go-account-api/internal/transport/http/metrics"
	appmiddleware "github.com/go-account-api/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo AccountRepository
	TokenRepo   TokenRepository
	ImageRepo   ImageRepository
	Blobs       BlobStore
	Codec       Codec
	// Deliverer may be nil; verification links are then only logged.
	Deliverer   account.Deliverer
	Health      handler.Pinger
	// Limiter guards the unauthenticated endpoints. Nil disables rate limiting.
	Limiter     *appmiddleware.RateLimiter
	Logger      *zerolog.Logger
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.AccessLog(log))
	r.Use(metrics.Instrument)
	r.Use(appmiddleware.NoCache)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	limit := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limit = deps.Limiter.Limit
	}

	verifySvc := verification.NewService(verification.ServiceDeps{
		TokenRepo:   deps.TokenRepo,
		AccountRepo: deps.AccountRepo,
		TTL:         cfg.VerificationTokenTTL,
		BaseURL:     cfg.BaseURL,
		Logger:      log,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		ImageRepo:   deps.ImageRepo,
		Blobs:       deps.Blobs,
		Issuer:      verifySvc,
		Deliverer:   deps.Deliverer,
		Codec:       deps.Codec,
		ImageURLTTL: cfg.ImageURLTTL,
		Logger:      log,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		Codec:       deps.Codec,
		Logger:      log,
	})

	healthH := handler.NewHealthHandler(deps.Health, log)
	accountH := handler.NewAccountHandler(accountSvc)
	imageH := handler.NewImageHandler(accountSvc, cfg.MaxUploadBytes)
	verifyH := handler.NewVerifyHandler(verifySvc)

	r.Get("/healthz", healthH.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.With(limit).Get("/verify", verifyH.Verify)

	gated := chi.Chain(appmiddleware.BasicAuth(authSvc), appmiddleware.RequireVerified)

	r.Route("/v1/user", func(r chi.Router) {
		r.With(limit).Post("/", accountH.Register)

		r.With(gated...).Get("/self", accountH.Get)
		r.With(gated...).Put("/self", accountH.Update)
	})

	// Profile images live under the v2 API, as in the original service.
	r.Route("/v2/user/self/pic", func(r chi.Router) {
		r.Use(gated...)

		r.Post("/", imageH.Upload)
		r.Get("/", imageH.Get)
		r.Delete("/", imageH.Delete)
	})

	return r
}
