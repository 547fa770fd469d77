package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/config"
	"github.com/suPer8Hu/ai-tutor/internal/content"
	"github.com/suPer8Hu/ai-tutor/internal/db"
	"github.com/suPer8Hu/ai-tutor/internal/logger"
	"github.com/suPer8Hu/ai-tutor/internal/store/rabbitmq"
	"github.com/suPer8Hu/ai-tutor/internal/worker"
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

	repo := content.NewRepo(gdb)
	reg := ai.NewRegistryFromSettings(cfg.AISettings())
	gen := content.NewGenerator(repo, reg, cfg.GenerationItemsPerTopic, cfg.GenerationConcurrency, log)

	// strict concurrency control: QoS = pool size
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.WithError(err).Fatal("rabbit connect")
	}
	defer consumer.Close()

	retries, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.WithError(err).Fatal("rabbit publisher")
	}
	defer retries.Close()

	deliveries, err := consumer.Deliveries()
	if err != nil {
		log.WithError(err).Fatal("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": cfg.WorkerConcurrency,
		"max_retries": cfg.JobMaxRetries,
	}).Info("worker started")

	worker.NewProcessor(repo, gen, log).
		WithRetry(retries, worker.RetryPolicy{MaxRetries: cfg.JobMaxRetries, Delay: cfg.JobRetryDelay}).
		Run(ctx, deliveries, cfg.WorkerConcurrency)
}
