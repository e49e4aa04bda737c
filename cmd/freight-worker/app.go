package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cargaviva/freightcore/config"
	"github.com/cargaviva/freightcore/internal/broker/kafka"
	"github.com/cargaviva/freightcore/internal/cache/rediscache"
	"github.com/cargaviva/freightcore/internal/services/confirmwatch"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo confirmwatch.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) confirmwatch.Producer
	newRateLimiter func(cfg *config.Config) confirmwatch.RateLimiter
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (confirmwatch.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgfreight.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) confirmwatch.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) confirmwatch.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
	}
}

func RunFreightWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ConfirmationReminderTopicName
	if topic == "" {
		topic = "confirmation.reminder"
	}

	pollInterval := time.Duration(cfg.Freight.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	batchSize := cfg.Freight.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Freight.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.Freight.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	remindersPerHour := int64(cfg.Freight.WorkerRemindersPerProducerPerHour)
	if remindersPerHour <= 0 {
		remindersPerHour = 30
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	w := confirmwatch.New(repo, producer, rl, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, remindersPerHour)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.Freight.WorkerHTTPAddr,
			watcher:  w,
			cfg:      cfg,
		})
	}()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-watchErr:
		return err
	}
}
