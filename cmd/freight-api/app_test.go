package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargaviva/freightcore/internal/broker/messages"
	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
)

type fakeInvalidator struct {
	invalidated []uint64
}

func (f *fakeInvalidator) Resolve(_ context.Context, _ uint64, _ models.Viewer) (string, error) {
	return "", nil
}

func (f *fakeInvalidator) Invalidate(_ context.Context, freightID uint64) {
	f.invalidated = append(f.invalidated, freightID)
}

func TestApplySettlementUpdate(t *testing.T) {
	res := &fakeInvalidator{}
	notifier := notify.New()
	ch, release := notifier.SubscribeProducer(7)
	defer release()

	b, err := json.Marshal(messages.SettlementUpdated{
		FreightID:  42,
		DriverID:   3,
		ProducerID: 7,
		Status:     models.SettlementConfirmed,
		At:         time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, applySettlementUpdate(context.Background(), b, res, notifier))
	require.Equal(t, []uint64{42}, res.invalidated)

	select {
	case ev := <-ch:
		require.Equal(t, uint64(42), ev.FreightID)
	case <-time.After(time.Second):
		t.Fatal("expected a producer-scoped signal")
	}
}

func TestApplySettlementUpdate_BadPayload(t *testing.T) {
	res := &fakeInvalidator{}
	err := applySettlementUpdate(context.Background(), []byte("{not json"), res, nil)
	require.Error(t, err)
	require.Empty(t, res.invalidated)
}

type flakyConsumer struct {
	attempts int
	failures int
	payload  []byte
	cancel   context.CancelFunc
}

func (c *flakyConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	c.attempts++
	if c.attempts <= c.failures {
		return errors.New("broker gone")
	}
	if c.payload != nil {
		if err := handler(nil, c.payload); err != nil {
			return err
		}
	}
	c.cancel()
	return ctx.Err()
}

func TestConsumeSettlements_ResubscribesAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := &fakeInvalidator{}
	b, _ := json.Marshal(messages.SettlementUpdated{FreightID: 42, ProducerID: 7})
	c := &flakyConsumer{failures: 2, payload: b, cancel: cancel}

	consumeSettlements(ctx, c, res, nil, time.Millisecond)

	// two dropped subscriptions, then the event still lands
	require.Equal(t, 3, c.attempts)
	require.Equal(t, []uint64{42}, res.invalidated)
}

func TestConsumeSettlements_SkipsPoisonMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := &fakeInvalidator{}
	c := &flakyConsumer{payload: []byte("{not json"), cancel: cancel}

	consumeSettlements(ctx, c, res, nil, time.Millisecond)

	// the malformed payload was swallowed, not returned as a consumer error
	require.Equal(t, 1, c.attempts)
	require.Empty(t, res.invalidated)
}

func TestApplySettlementUpdate_IgnoresEmptyFreight(t *testing.T) {
	res := &fakeInvalidator{}
	b, _ := json.Marshal(messages.SettlementUpdated{})
	require.NoError(t, applySettlementUpdate(context.Background(), b, res, nil))
	require.Empty(t, res.invalidated)
}
