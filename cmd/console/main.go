// Package main runs one console session with a local status server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/config"
	"github.com/capitalize-ai/agent-console/internal/handler"
	"github.com/capitalize-ai/agent-console/internal/middleware"
	"github.com/capitalize-ai/agent-console/internal/session"
	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-console", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	sess, err := session.New(uuid.New().String(), cfg, nil, log)
	if err != nil {
		log.Error("failed to build session", zap.Error(err))
		os.Exit(1)
	}
	sess.Start(ctx)
	defer sess.Close()

	var server *http.Server
	if cfg.StatusAddr != "" {
		server = &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           router(cfg, sess, log),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Info("status server listening", zap.String("addr", cfg.StatusAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("status server forced to shutdown", zap.Error(err))
		}
	}
}

func router(cfg *config.Config, sess *session.Session, log *logger.Logger) http.Handler {
	healthHandler := handler.NewHealthHandler(sess.Channel)
	conversationHandler := handler.NewConversationHandler(sess.Store, log)
	streamHandler := handler.NewStreamHandler(sess.Channel, log)
	catalogHandler := handler.NewCatalogHandler(sess.Agents, sess.Servers, sess.Tools, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.StatusAllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.StatusRateLimit, cfg.StatusRateWindow))

		r.Get("/state", handler.State(sess))
		r.Get("/events", streamHandler.Stream)
		r.Route("/conversations", conversationHandler.Routes)
		r.Route("/catalogs", catalogHandler.Routes)
	})

	return r
}
