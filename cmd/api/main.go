package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/config"
	"github.com/suPer8Hu/ai-tutor/internal/db"
	"github.com/suPer8Hu/ai-tutor/internal/httpapi"
	"github.com/suPer8Hu/ai-tutor/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-tutor/internal/logger"
	"github.com/suPer8Hu/ai-tutor/internal/observability"
	"github.com/suPer8Hu/ai-tutor/internal/store/rabbitmq"
	"github.com/suPer8Hu/ai-tutor/internal/store/redisstore"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("db migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis only guards session creation; run without it if it is down.
	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rds.Ping(pingCtx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, session locks disabled")
			_ = rds.Close()
			rds = nil
		} else {
			defer rds.Close()
		}
	}

	var pub handlers.JobPublisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, async generation disabled")
		} else {
			defer p.Close()
			pub = p
		}
	}

	shutdownTracing, err := observability.InitTracing(cfg.ServiceName, cfg.TracesStdout)
	if err != nil {
		log.WithError(err).Fatal("init tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := ai.NewRegistryFromSettings(cfg.AISettings())
	if _, err := reg.Default(ctx); errors.Is(err, ai.ErrNotConfigured) {
		log.Warn("completion gateway credential is not configured; chat and generation will fail")
	}

	h := handlers.NewHandler(gdb, cfg, reg, rds, pub, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "provider": cfg.AIProvider}).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("api shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}
