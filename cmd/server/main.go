package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicmonitor-backend-go/internal/cache"
	"civicmonitor-backend-go/internal/config"
	"civicmonitor-backend-go/internal/db"
	httpapi "civicmonitor-backend-go/internal/http"
	"civicmonitor-backend-go/internal/logging"
	"civicmonitor-backend-go/internal/migrations"
	"civicmonitor-backend-go/internal/services"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cleanupLogs, err := logging.Setup(cfg.LogLevel, cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		logrus.WithError(err).Warn("file logging disabled")
	} else {
		defer cleanupLogs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("db")
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database, "migrations"); err != nil {
		logrus.WithError(err).Fatal("migrations")
	}

	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable; rate limiting and reference cache disabled")
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	if err := os.MkdirAll(cfg.MediaStoragePath, 0o755); err != nil {
		logrus.WithError(err).Fatal("media storage")
	}
	media := services.NewDiskStore(cfg.MediaStoragePath)

	hub := services.NewIssueHub()
	go hub.Run(ctx)

	server := httpapi.NewServer(database, cfg, media, redisCache, hub)
	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	logrus.Info("shutdown complete")
}
