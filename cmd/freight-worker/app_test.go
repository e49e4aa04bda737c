package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargaviva/freightcore/config"
	"github.com/cargaviva/freightcore/internal/services/confirmwatch"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type fakeRepo struct{}

func (r *fakeRepo) ClaimDueConfirmations(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgfreight.DueConfirmation, error) {
	return []*pgfreight.DueConfirmation{}, nil
}

func (r *fakeRepo) MarkConfirmationNotified(ctx context.Context, freightID, driverID uint64, tier int, nextCheckAt time.Time) error {
	return nil
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunFreightWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (confirmwatch.Repository, func(), error) {
			return &fakeRepo{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) confirmwatch.Producer {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) confirmwatch.RateLimiter {
			return nil
		},
	}

	cfg := &config.Config{
		Kafka:   config.KafkaConfig{ConfirmationReminderTopicName: "t"},
		Freight: config.FreightConfig{WorkerPollIntervalSeconds: 1, WorkerHTTPAddr: "127.0.0.1:0"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunFreightWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
