package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	freightsapi "github.com/cargaviva/freightcore/internal/api/freights_api"
	"github.com/cargaviva/freightcore/internal/broker/messages"
	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/notify"
)

type freightAPIOpts struct {
	httpAddr        string
	settlementTopic string
	consumerGroup   string
	rateLimit       int64

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type statusInvalidator interface {
	freightsapi.StatusResolver
	Invalidate(ctx context.Context, freightID uint64)
}

type apiDeps struct {
	store       freightsapi.Store
	transitions freightsapi.TransitionService
	resolver    statusInvalidator
	pending     freightsapi.PendingLister
	dir         directory.Client
	notifier    *notify.Notifier
	limiter     freightsapi.RateLimiter
	consumer    kafkaConsumer
}

func runFreightAPI(ctx context.Context, opts freightAPIOpts, deps apiDeps) error {
	api := freightsapi.New(deps.store, deps.transitions, deps.resolver, deps.pending, deps.dir, deps.notifier)
	if deps.limiter != nil && opts.rateLimit > 0 {
		api.WithRateLimit(deps.limiter, opts.rateLimit)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: api.Routes()}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.settlementTopic, "group", opts.consumerGroup)
		consumeSettlements(ctx, deps.consumer, deps.resolver, deps.notifier, time.Second)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// consumeSettlements keeps the settlement stream attached for the lifetime of
// the process: a dropped broker connection re-subscribes with backoff, and a
// malformed payload is logged and committed past rather than redelivered
// forever.
func consumeSettlements(ctx context.Context, consumer kafkaConsumer, resolver statusInvalidator, notifier *notify.Notifier, retryWait time.Duration) {
	backoff := retryWait
	for {
		err := consumer.Consume(ctx, func(_ []byte, value []byte) error {
			if aerr := applySettlementUpdate(ctx, value, resolver, notifier); aerr != nil {
				slog.Warn("skipping malformed settlement event", "error", aerr.Error())
			}
			return nil
		})
		if ctx.Err() != nil {
			return
		}
		slog.Error("settlement consumer stopped, resubscribing", "error", fmt.Sprint(err), "backoff", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// applySettlementUpdate reacts to payment events from the settlement system:
// the cached producer view may now hide a pending confirmation, so it is
// dropped, and dashboard subscribers get a refresh signal.
func applySettlementUpdate(ctx context.Context, value []byte, resolver statusInvalidator, notifier *notify.Notifier) error {
	var m messages.SettlementUpdated
	if err := json.Unmarshal(value, &m); err != nil {
		return err
	}
	if m.FreightID == 0 {
		return nil
	}

	resolver.Invalidate(ctx, m.FreightID)
	if notifier != nil {
		notifier.Publish(notify.Event{
			FreightID:  m.FreightID,
			ProducerID: m.ProducerID,
			DriverID:   m.DriverID,
			Status:     m.Status,
			At:         m.At,
		})
	}
	return nil
}
