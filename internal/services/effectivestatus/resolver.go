package effectivestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/cache"
	"github.com/cargaviva/freightcore/internal/models"
)

type Repository interface {
	GetFreight(ctx context.Context, id uint64) (*models.Freight, error)
	ListAssignmentsByFreight(ctx context.Context, freightID uint64) ([]*models.FreightAssignment, error)
	GetProgress(ctx context.Context, freightID, driverID uint64) (*models.DriverTripProgress, error)
	ListProgressByFreight(ctx context.Context, freightID uint64) ([]*models.DriverTripProgress, error)
	ListHistory(ctx context.Context, freightID uint64, driverID *uint64) ([]*models.StatusHistoryEntry, error)
}

// Resolver computes the one status a given viewer should see for a freight,
// reconciling the freight row, per-driver trip progress and assignment rows.
type Resolver struct {
	repo  Repository
	cache cache.BytesCache
	ttl   time.Duration
}

func New(repo Repository, c cache.BytesCache, ttl time.Duration) *Resolver {
	return &Resolver{repo: repo, cache: c, ttl: ttl}
}

type projection struct {
	Status string `json:"status"`
}

func viewerKey(freightID uint64, viewer models.Viewer) string {
	if viewer.Kind == models.ViewerDriver {
		return fmt.Sprintf("effstatus:%d:driver:%d", freightID, viewer.DriverID)
	}
	return fmt.Sprintf("effstatus:%d:producer", freightID)
}

func (r *Resolver) Resolve(ctx context.Context, freightID uint64, viewer models.Viewer) (string, error) {
	if r.cache != nil && r.ttl > 0 {
		if b, ok, err := r.cache.Get(ctx, viewerKey(freightID, viewer)); err == nil && ok {
			var p projection
			if json.Unmarshal(b, &p) == nil && p.Status != "" {
				return p.Status, nil
			}
		}
	}

	status, err := r.resolve(ctx, freightID, viewer)
	if err != nil {
		return "", err
	}

	if r.cache != nil && r.ttl > 0 {
		b, _ := json.Marshal(projection{Status: status})
		_ = r.cache.Set(ctx, viewerKey(freightID, viewer), b, r.ttl)
	}
	return status, nil
}

func (r *Resolver) resolve(ctx context.Context, freightID uint64, viewer models.Viewer) (string, error) {
	f, err := r.repo.GetFreight(ctx, freightID)
	if err != nil {
		return "", errors.Wrap(err, "get freight")
	}

	// finality wins over any in-progress per-driver state
	if models.IsTerminalStatus(f.Status) {
		return f.Status, nil
	}

	if viewer.Kind == models.ViewerDriver {
		return r.resolveForDriver(ctx, f, viewer.DriverID)
	}
	return r.resolveForProducer(ctx, f)
}

// resolveForDriver returns only the driver's own lane. Another truck's more
// advanced progress must never leak into this view.
func (r *Resolver) resolveForDriver(ctx context.Context, f *models.Freight, driverID uint64) (string, error) {
	p, err := r.repo.GetProgress(ctx, f.ID, driverID)
	if err == nil {
		return p.CurrentStatus, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", errors.Wrap(err, "get trip progress")
	}
	return f.Status, nil
}

func (r *Resolver) resolveForProducer(ctx context.Context, f *models.Freight) (string, error) {
	assignments, err := r.repo.ListAssignmentsByFreight(ctx, f.ID)
	if err != nil {
		return "", errors.Wrap(err, "list assignments")
	}

	progress, err := r.repo.ListProgressByFreight(ctx, f.ID)
	if err != nil {
		return "", errors.Wrap(err, "list trip progress")
	}
	progByDriver := make(map[uint64]*models.DriverTripProgress, len(progress))
	for _, p := range progress {
		progByDriver[p.DriverID] = p
	}

	if f.RequiredTrucks > 1 {
		// show the producer the most advanced truck
		best := f.Status
		for _, a := range assignments {
			if a.Status == models.StatusCancelled || a.Status == models.StatusRejected {
				continue
			}
			st := a.Status
			if p, ok := progByDriver[a.DriverID]; ok {
				// trip progress is the source of truth when both exist
				st = p.CurrentStatus
			}
			best = models.MaxStatus(best, st)
		}
		return best, nil
	}

	// single truck: the sole driver's progress, history as fallback
	for _, a := range assignments {
		if a.Status == models.StatusCancelled || a.Status == models.StatusRejected {
			continue
		}
		if p, ok := progByDriver[a.DriverID]; ok {
			return p.CurrentStatus, nil
		}
		hist, err := r.repo.ListHistory(ctx, f.ID, &a.DriverID)
		if err != nil {
			return "", errors.Wrap(err, "list history")
		}
		if len(hist) > 0 {
			return hist[len(hist)-1].Status, nil
		}
		return models.MaxStatus(f.Status, a.Status), nil
	}
	return f.Status, nil
}

// Prime overwrites the cached projection right after a confirmed write, so a
// caller re-reading its own transition sees it before the next storage read.
func (r *Resolver) Prime(ctx context.Context, freightID uint64, viewer models.Viewer, status string) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	b, _ := json.Marshal(projection{Status: status})
	_ = r.cache.Set(ctx, viewerKey(freightID, viewer), b, r.ttl)
}

// Invalidate drops cached projections for a freight's producer view; used
// when an event arrives from outside the local write path.
func (r *Resolver) Invalidate(ctx context.Context, freightID uint64) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	// an empty projection is never trusted by Resolve, so this forces the
	// next read back to storage
	b, _ := json.Marshal(projection{})
	_ = r.cache.Set(ctx, viewerKey(freightID, models.ProducerViewer()), b, r.ttl)
}
