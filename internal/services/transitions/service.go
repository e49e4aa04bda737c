package transitions

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/broker/messages"
	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/notify"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

// waitBound caps how long a caller blocks on a transition. Expiry releases
// the caller without asserting the write's outcome; the write itself keeps
// running on a detached context.
const waitBound = 30 * time.Second

// locateBound caps the best-effort geolocation fetch.
const locateBound = 2 * time.Second

type Repository interface {
	GetFreight(ctx context.Context, id uint64) (*models.Freight, error)
	GetProgress(ctx context.Context, freightID, driverID uint64) (*models.DriverTripProgress, error)
	HasRecentHistory(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error)
	ApplyTransition(ctx context.Context, upd pgfreight.TransitionUpdate) error
	ListAssignmentsByFreight(ctx context.Context, freightID uint64) ([]*models.FreightAssignment, error)
	SetFreightStatus(ctx context.Context, freightID uint64, status string) error
}

type StatusResolver interface {
	Resolve(ctx context.Context, freightID uint64, viewer models.Viewer) (string, error)
	Prime(ctx context.Context, freightID uint64, viewer models.Viewer, status string)
	Invalidate(ctx context.Context, freightID uint64)
}

// Guard is the redis backstop admitting one writer per (freight, driver,
// status) per window, ahead of the history-table check becoming visible.
type Guard interface {
	Acquire(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error)
}

// Locator fetches the driver's current position. Best effort: failures are
// swallowed and the transition proceeds without coordinates.
type Locator interface {
	Locate(ctx context.Context, driverID uint64) (models.GeoPoint, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type TransitionRequest struct {
	FreightID    uint64
	DriverID     uint64
	Target       string
	Note         *string
	Location     *models.GeoPoint
	AssignmentID *uint64
}

type Service struct {
	repo      Repository
	validator *Validator
	resolver  StatusResolver
	guard     Guard
	locator   Locator
	producer  Publisher
	notifier  *notify.Notifier
	topic     string
}

func New(repo Repository, resolver StatusResolver, guard Guard, locator Locator, producer Publisher, notifier *notify.Notifier, topic string) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(repo),
		resolver:  resolver,
		guard:     guard,
		locator:   locator,
		producer:  producer,
		notifier:  notifier,
		topic:     topic,
	}
}

// RequestTransition is the sole write entry point for status progress.
// Blocks the caller for at most 30s; past that it returns
// ErrOperationTimedOut while the write keeps running detached, so the caller
// must re-check actual state before retrying.
func (s *Service) RequestTransition(ctx context.Context, req TransitionRequest) error {
	done := make(chan error, 1)

	// the write must not be half-cancelled by an impatient caller
	wctx := context.WithoutCancel(ctx)
	go func() {
		done <- s.applyTransition(wctx, req)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(models.ErrOperationTimedOut, ctx.Err().Error())
	case <-time.After(waitBound):
		return models.ErrOperationTimedOut
	}
}

func (s *Service) applyTransition(ctx context.Context, req TransitionRequest) error {
	if req.FreightID == 0 || req.DriverID == 0 {
		return errors.New("freightId and driverId are required")
	}
	if req.Target == "" {
		return errors.New("targetStatus is required")
	}

	f, err := s.repo.GetFreight(ctx, req.FreightID)
	if err != nil {
		return errors.Wrap(err, "get freight")
	}

	if err := s.validator.Validate(ctx, f, req.DriverID, req.Target); err != nil {
		return err
	}

	previous := ""
	if p, err := s.repo.GetProgress(ctx, req.FreightID, req.DriverID); err == nil {
		previous = p.CurrentStatus
	}

	loc := req.Location
	if loc == nil && s.locator != nil {
		lctx, cancel := context.WithTimeout(ctx, locateBound)
		if point, err := s.locator.Locate(lctx, req.DriverID); err == nil {
			loc = &point
		} else {
			slog.Debug("geolocation unavailable, proceeding without coordinates",
				"freight_id", req.FreightID, "driver_id", req.DriverID, "err", err)
		}
		cancel()
	}

	// race backstop right before the write: two concurrent retries that both
	// passed the history check collapse here
	if s.guard != nil {
		ok, err := s.guard.Acquire(ctx, req.FreightID, req.DriverID, req.Target, duplicateWindow)
		if err != nil {
			// guard outage falls back to the history window already checked
			slog.Warn("transition guard unavailable", "err", err)
		} else if !ok {
			return models.ErrDuplicateSuppressed
		}
	}

	at := time.Now().UTC()
	upd := pgfreight.TransitionUpdate{
		FreightID:    req.FreightID,
		DriverID:     req.DriverID,
		AssignmentID: req.AssignmentID,
		Status:       req.Target,
		At:           at,
		Notes:        req.Note,
	}
	if loc != nil {
		upd.Lat = &loc.Lat
		upd.Lng = &loc.Lng
	}
	if err := s.repo.ApplyTransition(ctx, upd); err != nil {
		return err
	}

	// read-your-writes: the acting driver sees the new status immediately
	s.resolver.Prime(ctx, req.FreightID, models.DriverViewer(req.DriverID), req.Target)
	s.resolver.Invalidate(ctx, req.FreightID)

	s.publishChange(ctx, f, req.DriverID, req.Target, previous, at, loc)
	return nil
}

// ConfirmReceipt is the producer's acknowledgment of a delivered load. Moves
// the pair to DELIVERED and, once every live lane is delivered, finalizes the
// freight row itself.
func (s *Service) ConfirmReceipt(ctx context.Context, freightID, driverID, producerID uint64) error {
	f, err := s.repo.GetFreight(ctx, freightID)
	if err != nil {
		return errors.Wrap(err, "get freight")
	}
	if f.ProducerID != producerID {
		return models.ErrNotParticipant
	}

	p, err := s.repo.GetProgress(ctx, freightID, driverID)
	if err != nil {
		return errors.Wrap(err, "get trip progress")
	}
	if p.CurrentStatus != models.StatusDeliveredPendingConf {
		return models.ErrOutOfOrderTransition
	}

	at := time.Now().UTC()
	err = s.repo.ApplyTransition(ctx, pgfreight.TransitionUpdate{
		FreightID: freightID,
		DriverID:  driverID,
		Status:    models.StatusDelivered,
		ChangedBy: producerID,
		At:        at,
	})
	if err != nil {
		return err
	}

	s.resolver.Prime(ctx, freightID, models.DriverViewer(driverID), models.StatusDelivered)
	s.resolver.Invalidate(ctx, freightID)
	s.publishChange(ctx, f, driverID, models.StatusDelivered, models.StatusDeliveredPendingConf, at, nil)

	return s.maybeFinalizeFreight(ctx, f, at)
}

// maybeFinalizeFreight flips the freight row to DELIVERED once no live lane
// is still in flight. The freight row is only ever mutated here.
func (s *Service) maybeFinalizeFreight(ctx context.Context, f *models.Freight, at time.Time) error {
	as, err := s.repo.ListAssignmentsByFreight(ctx, f.ID)
	if err != nil {
		return errors.Wrap(err, "list assignments")
	}

	live := 0
	delivered := 0
	for _, a := range as {
		switch a.Status {
		case models.StatusCancelled, models.StatusRejected:
		case models.StatusDelivered, models.StatusCompleted:
			live++
			delivered++
		default:
			live++
		}
	}
	if live == 0 || delivered < live {
		return nil
	}

	if err := s.repo.SetFreightStatus(ctx, f.ID, models.StatusDelivered); err != nil {
		return errors.Wrap(err, "finalize freight")
	}
	s.resolver.Invalidate(ctx, f.ID)
	s.publishChange(ctx, f, 0, models.StatusDelivered, f.Status, at, nil)
	return nil
}

func (s *Service) publishChange(ctx context.Context, f *models.Freight, driverID uint64, status, previous string, at time.Time, loc *models.GeoPoint) {
	if s.notifier != nil {
		s.notifier.Publish(notify.Event{
			FreightID:  f.ID,
			ProducerID: f.ProducerID,
			DriverID:   driverID,
			Status:     status,
			Previous:   previous,
			At:         at,
		})
	}

	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.StatusChanged{
		FreightID: f.ID,
		DriverID:  driverID,
		Status:    status,
		Previous:  previous,
		At:        at,
	}
	if loc != nil {
		msg.Lat = &loc.Lat
		msg.Lng = &loc.Lng
	}
	b, _ := json.Marshal(msg)
	key := []byte(strconv.FormatUint(f.ID, 10))
	if err := s.producer.Publish(ctx, s.topic, key, b); err != nil {
		// the transition is already committed; observers refetch on the next
		// explicit read
		slog.Warn("publish status change failed", "freight_id", f.ID, "err", err)
	}
}
