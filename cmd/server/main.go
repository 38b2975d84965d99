package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/config"
	"MessagingWebserver/internal/httpapi"
	"MessagingWebserver/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	b, err := openBackend(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("backend open failed", "backend", cfg.Backend(), "err", err)
		os.Exit(1)
	}
	defer b.close()

	authSvc := &service.AuthService{
		Users:      b.users,
		Sessions:   b.sessions,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	friendsSvc := &service.FriendsService{
		Users:       b.users,
		Friendships: b.friendships,
		Tx:          b.tx,
		Locks:       b.locks,
		Logger:      logger,
	}
	gatekeeper := &service.Gatekeeper{
		Users:  b.users,
		Tx:     b.tx,
		Locks:  b.locks,
		Logger: logger,
	}
	messagesSvc := &service.MessagesService{
		Users:       b.users,
		Friendships: b.friendships,
		Messages:    b.messages,
		Tx:          b.tx,
	}
	querySvc := &service.QueryService{
		Users:       b.users,
		Friendships: b.friendships,
		Messages:    b.messages,
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       b.ping,
		Auth:         authSvc,
		Friends:      friendsSvc,
		Gatekeeper:   gatekeeper,
		Messages:     messagesSvc,
		Query:        querySvc,
		Users:        &service.UsersService{Store: b.users},
		CookieCodec:  auth.NewCookieCodec([]byte(cfg.CookieSecret)),
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "backend", cfg.Backend(), "redis", cfg.RedisAddr != "")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
