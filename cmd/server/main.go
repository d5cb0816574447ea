// Command server runs the credit-metered question answering API.
//
// Configuration comes from environment variables (see internal/config); a
// local .env file is loaded first when present. The process owns the SQLite
// database, the HTTP listener, and the background reservation sweep, and
// shuts all three down on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/elinhq/go-ask-backend/docs"
	"github.com/elinhq/go-ask-backend/internal/answer"
	"github.com/elinhq/go-ask-backend/internal/config"
	httpapi "github.com/elinhq/go-ask-backend/internal/http"
	"github.com/elinhq/go-ask-backend/internal/observability"
	"github.com/elinhq/go-ask-backend/internal/repo"
	"github.com/elinhq/go-ask-backend/internal/services"
	"github.com/elinhq/go-ask-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title        Ask Backend API
// @version      1.0
// @description  Credit-metered question answering with idempotent charging,
// @description  followup threads, and simulated credit purchases.
// @BasePath     /api/v1
func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.AnswerProvider).Msg("answer provider setup failed")
	}

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	ledger := httpapi.RegisterRoutes(r, db, gen, cfg)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Background refunds for reservations orphaned by a crash mid-ask.
	if cfg.ReconcileInterval > 0 {
		rec := &services.ReconcileService{DB: db, Ledger: ledger}
		go rec.Run(ctx, cfg.ReconcileInterval, cfg.ReconcileMinAge)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.AppEnv).
			Str("provider", cfg.AnswerProvider).
			Str("version", version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildGenerator picks the answer backend from config. The mock generator
// needs no credentials and is the default outside production.
func buildGenerator(cfg config.Config) (answer.Generator, error) {
	switch cfg.AnswerProvider {
	case "openai":
		return answer.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAISystemPrompt)
	default:
		return answer.MockGenerator{}, nil
	}
}
