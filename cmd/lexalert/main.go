package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/config"
	"github.com/caselens/lexalert/internal/db"
	dbRedis "github.com/caselens/lexalert/internal/db/redis"
	logpkg "github.com/caselens/lexalert/internal/logger"
	"github.com/caselens/lexalert/internal/metrics"
	"github.com/caselens/lexalert/internal/notify"
	alertrepo "github.com/caselens/lexalert/internal/repository/alert"
	courtrepo "github.com/caselens/lexalert/internal/repository/court"
	documentrepo "github.com/caselens/lexalert/internal/repository/document"
	percolatorrepo "github.com/caselens/lexalert/internal/repository/percolator"
	schedulerepo "github.com/caselens/lexalert/internal/repository/schedule"
	userrepo "github.com/caselens/lexalert/internal/repository/user"
	webhookrepo "github.com/caselens/lexalert/internal/repository/webhook"
	chiTransport "github.com/caselens/lexalert/internal/transport/chi"
	alertcheckuc "github.com/caselens/lexalert/internal/usecase/alertcheck"
	alertsuc "github.com/caselens/lexalert/internal/usecase/alerts"
	digestuc "github.com/caselens/lexalert/internal/usecase/digest"
	dispatchuc "github.com/caselens/lexalert/internal/usecase/dispatch"
	healthuc "github.com/caselens/lexalert/internal/usecase/health"
	ingestuc "github.com/caselens/lexalert/internal/usecase/ingest"
	percolatoruc "github.com/caselens/lexalert/internal/usecase/percolator"
	searchuc "github.com/caselens/lexalert/internal/usecase/search"
	webhooksuc "github.com/caselens/lexalert/internal/usecase/webhooks"
	"github.com/caselens/lexalert/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lexalert API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	if err := createIndexes(ctx, store); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	// Register alert metrics explicitly (no init())
	metrics.RegisterAlertMetrics()

	// Repositories
	alertRepo := alertrepo.New(store)
	docRepo := documentrepo.New(store)
	percRepo := percolatorrepo.New(store)
	schedRepo := schedulerepo.New(store)
	webhookRepo := webhookrepo.New(store)
	userRepo := userrepo.New(store)
	courtRepo := courtrepo.New(store)

	// Outbound channels
	var (
		dispatchMailer dispatchuc.Mailer = notify.NopMailer{}
		digestMailer   digestuc.Mailer   = notify.NopMailer{}
		mailChecker    healthuc.MailChecker
	)
	if cfg.SMTP.Host != "" {
		m := notify.NewMailer(cfg.SMTP)
		dispatchMailer = m
		digestMailer = m
		mailChecker = m
	} else {
		logger.Warn("SMTP not configured, alert emails are disabled")
	}
	sender := notify.NewWebhookSender(time.Duration(cfg.Webhook.TimeoutSec) * time.Second)

	// Use case services
	registry := percolatoruc.NewRegistry(percRepo)
	engine := percolatoruc.NewEngine(percRepo, docRepo, cfg.Percolator.PageSize)
	dispatchSvc := dispatchuc.New(userRepo, webhookRepo, schedRepo, dispatchMailer, sender, alertRepo)

	alertSvc := alertsuc.New(alertRepo, registry)
	webhookSvc := webhooksuc.New(webhookRepo)
	searchSvc := searchuc.New(docRepo, courtRepo, searchuc.Config{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
		GroupTopHits:    cfg.Search.GroupTopHits,
		GroupTopHitsMax: cfg.Search.GroupTopHitsMax,
	})
	ingestSvc := ingestuc.New(docRepo, engine, dispatchSvc)
	digestSvc := digestuc.New(schedRepo, alertRepo, userRepo, digestMailer,
		cfg.Digest.ChildHitsPerResult, cfg.Digest.SentRetentionDays)
	checkSvc := alertcheckuc.New(alertRepo, registry, docRepo)
	healthSvc := healthuc.New(store, mailChecker)

	server := chiTransport.NewServer(
		alertSvc, webhookSvc, searchSvc, ingestSvc, digestSvc, checkSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// createIndexes ensures every FT index exists. Existing indexes are left
// alone.
func createIndexes(ctx context.Context, store db.Store) error {
	defs := []*db.IndexDefinition{
		alertrepo.Index(),
		percolatorrepo.Index(),
		schedulerepo.Index(),
		webhookrepo.Index(),
	}
	defs = append(defs, documentrepo.Indexes()...)

	for _, def := range defs {
		if err := store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
