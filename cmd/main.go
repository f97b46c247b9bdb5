// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gandalf-events/ledger/internal/database"
	"github.com/gandalf-events/ledger/internal/handler"
	"github.com/gandalf-events/ledger/internal/metrics"
	"github.com/gandalf-events/ledger/internal/repository"
	"github.com/gandalf-events/ledger/internal/service"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx)
	if err != nil {
		logger.Error("database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)

	eventRepo := repository.NewEventRepository(pool)
	alRepo := repository.NewAccessLevelRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	notifier := &service.LogNotifier{Logger: logger}
	eventSvc := service.NewEventService(eventRepo, alRepo)
	regSvc := service.NewRegistrationService(regRepo, alRepo, auditRepo, notifier, m)

	eventHandler := handler.NewEventHandler(eventSvc)
	regHandler := handler.NewRegistrationHandler(regSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)

	// Health and metrics
	r.Get("/health", handler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes
	r.Route("/events", func(r chi.Router) {
		r.Post("/", eventHandler.CreateEvent)
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{id}", eventHandler.GetEvent)

		r.Route("/{id}/access-levels", func(r chi.Router) {
			r.Post("/", eventHandler.CreateAccessLevel)
			r.Get("/", eventHandler.ListAccessLevels)
			r.Get("/{alID}", eventHandler.GetAccessLevel)
			r.Patch("/{alID}", eventHandler.UpdateAccessLevel)
			r.Delete("/{alID}", eventHandler.DeleteAccessLevel)
			r.Post("/{alID}/toggle-visibility", eventHandler.ToggleVisibility)
		})

		r.Post("/{id}/registrations", regHandler.Register)
		r.Get("/{id}/registrations", regHandler.ListRegistrations)
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Get("/{id}", regHandler.GetRegistration)
		r.Patch("/{id}", regHandler.UpdateRegistration)
		r.Delete("/{id}", regHandler.DeleteRegistration)
		r.Post("/{id}/barcode", regHandler.GenerateBarcode)
		r.Post("/{id}/check-in", regHandler.CheckIn)
		r.Post("/{id}/deliver", regHandler.Deliver)
		r.Get("/{id}/audit", regHandler.AuditHistory)
	})

	r.Post("/payments/match", regHandler.MatchPayment)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		logger.Info("server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
