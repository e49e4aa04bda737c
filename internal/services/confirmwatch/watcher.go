// Package confirmwatch is the background watcher for confirmation deadlines:
// it claims delivered loads still awaiting the producer, classifies how much
// of the 72h window is left and publishes one reminder per urgency-tier
// crossing.
package confirmwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cargaviva/freightcore/internal/broker/messages"
	"github.com/cargaviva/freightcore/internal/services/pendingconfirm"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type Repository interface {
	ClaimDueConfirmations(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgfreight.DueConfirmation, error)
	MarkConfirmationNotified(ctx context.Context, freightID, driverID uint64, tier int, nextCheckAt time.Time) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Watcher struct {
	repo     Repository
	producer Producer
	rl       RateLimiter

	topic string

	pollInterval             time.Duration
	batchSize                int
	concurrency              int
	lease                    time.Duration
	remindersPerProducerHour int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalReminded       atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, producer Producer, rl RateLimiter, topic string) *Watcher {
	return &Watcher{
		repo: repo, producer: producer, rl: rl, topic: topic,
		pollInterval:             30 * time.Second,
		batchSize:                100,
		concurrency:              10,
		lease:                    120 * time.Second,
		remindersPerProducerHour: 30,
		triggerCh:                make(chan struct{}, 1),
		startedAtUnixNano:        time.Now().UTC().UnixNano(),
	}
}

func (w *Watcher) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, remindersPerHour int64) *Watcher {
	if pollInterval > 0 {
		w.pollInterval = pollInterval
	}
	if batchSize > 0 {
		w.batchSize = batchSize
	}
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	if lease > 0 {
		w.lease = lease
	}
	if remindersPerHour > 0 {
		w.remindersPerProducerHour = remindersPerHour
	}
	return w
}

// Trigger forces an immediate cycle (best-effort, non-blocking). Wired to
// the settlement consumer so a fresh settlement shortens the wait.
func (w *Watcher) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalReminded int64      `json:"totalReminded"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (w *Watcher) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalClaimed:  w.totalClaimed.Load(),
		TotalReminded: w.totalReminded.Load(),
		TotalErrors:   w.totalErrors.Load(),
		InFlight:      w.inFlight.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	w.lastCycleUnixNano.Store(now.UnixNano())

	items, err := w.repo.ClaimDueConfirmations(ctx, now, w.batchSize, w.lease)
	if err != nil {
		slog.Error("claim due confirmations", "error", err.Error())
		w.setLastError(err)
		return
	}
	w.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, it := range items {
		sem <- struct{}{}
		wg.Add(1)
		itCopy := it
		w.inFlight.Add(1)
		go func() {
			defer func() {
				w.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := w.processOne(ctx, itCopy); err != nil {
				w.totalErrors.Add(1)
				w.setLastError(err)
				slog.Error("process confirmation",
					"freight_id", itCopy.FreightID, "driver_id", itCopy.DriverID, "error", err.Error())
			}
		}()
	}
	wg.Wait()
}

func (w *Watcher) processOne(ctx context.Context, it *pgfreight.DueConfirmation) error {
	now := time.Now().UTC()
	deadline := pendingconfirm.Deadline(it.DeliveredAt)
	tier := TierFor(deadline, now)

	if tier <= it.NotifiedTier {
		// nothing new to say; come back at the next boundary
		return w.repo.MarkConfirmationNotified(ctx, it.FreightID, it.DriverID, it.NotifiedTier, now.Add(NextCheckDelay(deadline, now)))
	}

	if w.rl != nil && w.remindersPerProducerHour > 0 {
		hourKey := fmt.Sprintf("rl:confirmrem:%d:%s", it.ProducerID, now.Format("2006010215"))
		allowed, n, err := w.rl.Allow(ctx, hourKey, w.remindersPerProducerHour, 70*time.Minute)
		if err != nil {
			return err
		}
		if !allowed {
			slog.Warn("reminder rate limit exceeded", "producer_id", it.ProducerID, "count", n)
			// retry shortly without advancing the tier
			return w.repo.MarkConfirmationNotified(ctx, it.FreightID, it.DriverID, it.NotifiedTier, now.Add(10*time.Minute))
		}
	}

	msg := messages.ConfirmationReminder{
		FreightID:      it.FreightID,
		DriverID:       it.DriverID,
		ProducerID:     it.ProducerID,
		Deadline:       deadline,
		HoursRemaining: Remaining(deadline, now),
		Tier:           TierName(tier),
		At:             now,
	}
	b, _ := json.Marshal(msg)
	key := []byte(strconv.FormatUint(it.FreightID, 10))
	if err := w.producer.Publish(ctx, w.topic, key, b); err != nil {
		return err
	}
	w.totalReminded.Add(1)

	return w.repo.MarkConfirmationNotified(ctx, it.FreightID, it.DriverID, tier, now.Add(NextCheckDelay(deadline, now)))
}

func (w *Watcher) setLastError(err error) {
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}
