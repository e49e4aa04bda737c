// Package pendingconfirm reconciles "delivered, awaiting producer
// confirmation" records across their redundant sources and classifies each
// surviving item by confirmation deadline.
package pendingconfirm

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/integrations/directory"
	"github.com/cargaviva/freightcore/internal/models"
	"github.com/cargaviva/freightcore/internal/storage/pgfreight"
)

type Repository interface {
	GetFreight(ctx context.Context, id uint64) (*models.Freight, error)
	ListPendingAssignments(ctx context.Context, producerID uint64) ([]*models.FreightAssignment, error)
	ListPendingProgress(ctx context.Context, producerID uint64) ([]*models.DriverTripProgress, error)
	ListSettledKeys(ctx context.Context, producerID uint64) (map[pgfreight.SettledKey]struct{}, error)
}

type Reconciler struct {
	repo Repository
	dir  directory.Client

	now func() time.Time
}

func New(repo Repository, dir directory.Client) *Reconciler {
	return &Reconciler{repo: repo, dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock fixes the reconciler's notion of now; deadline math in tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// candidate is the field-level merge of an assignment row and a trip-progress
// row for the same (freight, driver). Trip-progress values win when both
// exist, delivered_at above all.
type candidate struct {
	freightID  uint64
	driverID   uint64
	companyID  *uint64
	reportedAt *time.Time
}

// ListPending returns the producer's confirmation queue, most urgent first.
// A failing lookup skips its record and never fails the whole list.
func (r *Reconciler) ListPending(ctx context.Context, producerID uint64) ([]models.PendingItem, error) {
	if producerID == 0 {
		return nil, errors.New("producerId is required")
	}

	cands, err := r.collect(ctx, producerID)
	if err != nil {
		return nil, err
	}

	settled, err := r.repo.ListSettledKeys(ctx, producerID)
	if err != nil {
		return nil, errors.Wrap(err, "list settled keys")
	}

	now := r.now()
	freights := make(map[uint64]*models.Freight)
	items := make([]models.PendingItem, 0, len(cands))

	for _, c := range cands {
		if _, done := settled[pgfreight.SettledKey{FreightID: c.freightID, DriverID: c.driverID}]; done {
			// the producer already acted through the payment flow; do not
			// resurface even while downstream status lags
			continue
		}
		if c.reportedAt == nil {
			slog.Warn("pending delivery without a report timestamp, skipping",
				"freight_id", c.freightID, "driver_id", c.driverID)
			continue
		}

		f, ok := freights[c.freightID]
		if !ok {
			f, err = r.repo.GetFreight(ctx, c.freightID)
			if err != nil {
				slog.Warn("freight lookup failed, skipping pending item",
					"freight_id", c.freightID, "err", err)
				continue
			}
			freights[c.freightID] = f
		}

		profile, err := r.resolveIdentity(ctx, c.freightID, producerID, c.driverID)
		if err != nil {
			slog.Warn("driver identity unavailable, skipping pending item",
				"freight_id", c.freightID, "driver_id", c.driverID, "err", err)
			continue
		}

		deadline := Deadline(*c.reportedAt)
		hours := HoursRemaining(deadline, now)

		item := models.PendingItem{
			FreightID:      c.freightID,
			DriverID:       c.driverID,
			DriverName:     profile.Name,
			FreightStatus:  f.Status,
			ReportedAt:     *c.reportedAt,
			Deadline:       deadline,
			HoursRemaining: hours,
			IsUrgent:       hours < urgentUnderHours,
			IsCritical:     hours < criticalUnderHours,
			DeadlineLabel:  DeadlineLabel(deadline, now),
		}
		if c.companyID != nil {
			item.CompanyName = profile.CompanyName
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].HoursRemaining != items[j].HoursRemaining {
			return items[i].HoursRemaining < items[j].HoursRemaining
		}
		return items[i].ReportedAt.Before(items[j].ReportedAt)
	})
	return items, nil
}

// collect unions the two candidate sources keyed by (freight, driver).
func (r *Reconciler) collect(ctx context.Context, producerID uint64) (map[pgfreight.SettledKey]*candidate, error) {
	assignments, err := r.repo.ListPendingAssignments(ctx, producerID)
	if err != nil {
		return nil, errors.Wrap(err, "list pending assignments")
	}
	progress, err := r.repo.ListPendingProgress(ctx, producerID)
	if err != nil {
		return nil, errors.Wrap(err, "list pending progress")
	}

	cands := make(map[pgfreight.SettledKey]*candidate, len(assignments)+len(progress))
	for _, a := range assignments {
		cands[pgfreight.SettledKey{FreightID: a.FreightID, DriverID: a.DriverID}] = &candidate{
			freightID:  a.FreightID,
			driverID:   a.DriverID,
			companyID:  a.CompanyID,
			reportedAt: a.DeliveredAt,
		}
	}
	for _, p := range progress {
		key := pgfreight.SettledKey{FreightID: p.FreightID, DriverID: p.DriverID}
		c, ok := cands[key]
		if !ok {
			c = &candidate{freightID: p.FreightID, driverID: p.DriverID}
			cands[key] = c
		}
		// trip progress is the finer-grained source; its delivery timestamp
		// takes precedence
		if p.DeliveredAt != nil {
			c.reportedAt = p.DeliveredAt
		}
	}
	return cands, nil
}

// resolveIdentity tries the standard directory first; if visibility policy
// withholds the row, the freight-scoped fallback re-verifies participation
// server-side before disclosing anything.
func (r *Reconciler) resolveIdentity(ctx context.Context, freightID, callerID, driverID uint64) (directory.Profile, error) {
	p, err := r.dir.GetProfile(ctx, driverID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, directory.ErrHidden) {
		return directory.Profile{}, err
	}
	return r.dir.GetFreightScopedProfile(ctx, freightID, callerID, driverID)
}
