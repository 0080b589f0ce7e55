package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scriptcollab/internal/config"
	"scriptcollab/internal/routers"
	"scriptcollab/internal/services"
	"scriptcollab/internal/session"
	"scriptcollab/internal/utils"
)

var (
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	exitFunc       = defaultExit
	exit           = os.Exit
	shutdownGrace  = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET not set, using development secret")
	}

	var hubOpts []session.Option
	var events *services.ScriptEvents
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		events = services.NewScriptEvents(rdb, logger)
		hubOpts = append(hubOpts, session.WithPresencePublisher(events))
	}

	hub := session.NewHub(logger, hubOpts...)
	if events != nil {
		if err := events.Start(ctx, hub); err != nil {
			logger.Warn("script events disabled", zap.String("redis", cfg.RedisAddr), zap.Error(err))
		}
	}

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler)
	r.Mount("/", routers.New(logger, cfg, hub))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("scriptcollab listening", zap.String("addr", srv.Addr))
		errCh <- listenAndServe(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("scriptcollab shutting down")
	hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func defaultExit(err error) {
	log.Printf("scriptcollab: %v", err)
	exit(1)
}
