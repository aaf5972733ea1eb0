package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/roomchat/internal/api"
	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/cache"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	cfg := config.NewConfigFromEnv().Sanitize()
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting roomchat server", "port", cfg.Port, "database", cfg.DatabasePath)

	db, err := store.Open(cfg.DatabasePath, cfg.LogLevel)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = cache.NewClient(cfg.RedisAddr)
	}
	recipients := cache.New(redisClient, db, cfg.RecipientCacheTTL, logger)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := recipients.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, recipient lookups go to the database", "addr", cfg.RedisAddr, "error", err)
	}
	cancel()

	hub := server.NewHub(rooms.NewRegistry(), recipients, logger)
	go hub.Run()

	srv := server.New(cfg, hub, logger)
	mux := srv.SetupRoutes()
	api.New(db,
		auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		auth.NewPasswordHasher(),
		recipients,
		logger,
	).Routes(mux)

	httpServer := server.CreateServer(cfg.Port, mux)
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return errors.Join(
					server.ShutdownServer(ctx, httpServer, logger),
					hub.Shutdown(remaining(ctx)),
					recipients.Close(),
					db.Close(),
				)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

// remaining returns the time left before ctx expires.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 5 * time.Second
	}
	if d := time.Until(deadline); d > 0 {
		return d
	}
	return time.Millisecond
}
