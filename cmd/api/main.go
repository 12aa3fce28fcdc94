package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/infrastructure/dynamo"
	"github.com/go-account-api/internal/infrastructure/postgres"
	s3infra "github.com/go-account-api/internal/infrastructure/s3"
	"github.com/go-account-api/internal/infrastructure/smtp"
	"github.com/go-account-api/internal/infrastructure/sns"
	"github.com/go-account-api/internal/pkg/credential"
	"github.com/go-account-api/internal/pkg/logger"
	transporthttp "github.com/go-account-api/internal/transport/http"
	"github.com/go-account-api/internal/transport/http/handler"
	"github.com/go-account-api/internal/transport/http/metrics"
	appmiddleware "github.com/go-account-api/internal/transport/http/middleware"
)

func main() {
	dotenvErr := godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "accounts-api",
	})
	if dotenvErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	deps, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store setup failed")
	}
	defer closeStore()

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 client setup failed")
	}
	deps.Blobs = s3infra.NewStore(s3Client, cfg.S3BucketName)

	deliverer, err := buildDeliverer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DeliveryDriver).Msg("delivery setup failed")
	}
	deps.Deliverer = deliverer

	deps.Codec = credential.NewCodec(cfg.BcryptCost)
	deps.Logger = log
	deps.Limiter = appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	defer deps.Limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}
	log.Info().Msg("server stopped")
}

// buildStore wires the account, token and image repositories of the configured
// backend. The returned func releases its connections.
func buildStore(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*transporthttp.Deps, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Msg("postgres migrations applied")
		return &transporthttp.Deps{
			AccountRepo: postgres.NewAccountRepository(db),
			TokenRepo:   postgres.NewTokenRepository(db),
			ImageRepo:   postgres.NewImageRepository(db),
			Health:      handler.PingFunc(db.PingContext),
		}, closer(db), nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Creates missing tables.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		accounts := dynamo.NewAccountRepo(client, cfg.DynamoTables.Accounts)
		return &transporthttp.Deps{
			AccountRepo: accounts,
			TokenRepo:   dynamo.NewTokenRepo(client, cfg.DynamoTables.VerificationTokens),
			ImageRepo:   dynamo.NewImageRepo(client, cfg.DynamoTables.ProfileImages),
			Health:      accounts,
		}, func() {}, nil
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

// buildDeliverer returns nil for the log driver; registration then only logs
// the verification link.
func buildDeliverer(ctx context.Context, cfg *config.Config) (account.Deliverer, error) {
	switch cfg.DeliveryDriver {
	case config.DeliverySNS:
		p, err := sns.NewPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return metrics.CountDeliveries(p), nil
	case config.DeliverySMTP:
		return metrics.CountDeliveries(smtp.NewMailer(cfg)), nil
	default:
		return nil, nil
	}
}
