package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cargaviva/freightcore/config"
	"github.com/cargaviva/freightcore/internal/broker/kafka"
	"github.com/cargaviva/freightcore/internal/cache/rediscache"
	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/integrations/directory/fake"
	"github.com/cargaviva/freightcore/internal/integrations/directory/httpdir"
	"github.com/cargaviva/freightcore/internal/notify"
	"github.com/cargaviva/freightcore/internal/services/effectivestatus"
	"github.com/cargaviva/freightcore/internal/services/pendingconfirm"
	"github.com/cargaviva/freightcore/internal/services/transitions"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	httpAddr := cfg.Freight.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Freight.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "freight-api"
	}
	statusTopic := cfg.Kafka.StatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "freight.status.changed"
	}
	settlementTopic := cfg.Kafka.SettlementUpdatedTopicName
	if settlementTopic == "" {
		settlementTopic = "settlement.updated"
	}
	cacheTTL := time.Duration(cfg.Freight.StatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	rateLimit := int64(cfg.Freight.APIRateLimitPerMinute)
	if rateLimit <= 0 {
		rateLimit = 300
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgfreight.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	guard := rediscache.NewTransitionGuard(redisAddr)
	limiter := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	var dir directory.Client
	if cfg.Freight.DirectoryBaseURL != "" {
		dir = httpdir.New(cfg.Freight.DirectoryBaseURL, cfg.Freight.DirectoryAPIKey)
	} else {
		dir = fake.New()
	}

	notifier := notify.New()
	resolver := effectivestatus.New(st, rc, cacheTTL)
	transitionSvc := transitions.New(st, resolver, guard, nil, producer, notifier, statusTopic)
	reconciler := pendingconfirm.New(st, dir)

	consumer := kafka.NewConsumer(brokers, settlementTopic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runFreightAPI(ctx, freightAPIOpts{
		httpAddr:        httpAddr,
		settlementTopic: settlementTopic,
		consumerGroup:   consumerGroup,
		rateLimit:       rateLimit,
	}, apiDeps{
		store:       st,
		transitions: transitionSvc,
		resolver:    resolver,
		pending:     reconciler,
		dir:         dir,
		notifier:    notifier,
		limiter:     limiter,
		consumer:    consumer,
	}); err != nil && err != context.Canceled {
		panic(err)
	}
}
