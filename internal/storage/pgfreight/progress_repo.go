package pgfreight

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

// TransitionUpdate is one accepted status transition, applied atomically:
// trip progress upsert + history append + assignment convergence in one tx.
type TransitionUpdate struct {
	FreightID    uint64
	DriverID     uint64
	AssignmentID *uint64

	Status string
	At     time.Time

	// ChangedBy is the history actor; defaults to DriverID (the usual case,
	// a driver reporting own progress). Producer confirmations set it.
	ChangedBy uint64

	Notes *string
	Lat   *float64
	Lng   *float64
}

// phaseColumns maps a status to the driver_trip_progress timestamp column it
// stamps. Statuses outside the flow stamp nothing.
var phaseColumns = map[string]string{
	models.StatusAccepted:             "accepted_at",
	models.StatusLoading:              "loading_at",
	models.StatusLoaded:               "loaded_at",
	models.StatusInTransit:            "in_transit_at",
	models.StatusDeliveredPendingConf: "delivered_at",
}

func (s *Storage) ApplyTransition(ctx context.Context, upd TransitionUpdate) error {
	if upd.At.IsZero() {
		upd.At = time.Now().UTC()
	}
	if upd.ChangedBy == 0 {
		upd.ChangedBy = upd.DriverID
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO driver_trip_progress (
  freight_id, driver_id, assignment_id, current_status,
  last_lat, last_lng, driver_notes, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (freight_id, driver_id)
DO UPDATE SET
  current_status = EXCLUDED.current_status,
  assignment_id = COALESCE(EXCLUDED.assignment_id, driver_trip_progress.assignment_id),
  last_lat = COALESCE(EXCLUDED.last_lat, driver_trip_progress.last_lat),
  last_lng = COALESCE(EXCLUDED.last_lng, driver_trip_progress.last_lng),
  driver_notes = COALESCE(EXCLUDED.driver_notes, driver_trip_progress.driver_notes),
  updated_at = EXCLUDED.updated_at
`, upd.FreightID, upd.DriverID, upd.AssignmentID, upd.Status, upd.Lat, upd.Lng, upd.Notes, upd.At)
	if err != nil {
		return errors.Wrap(err, "upsert trip progress")
	}

	if col, ok := phaseColumns[upd.Status]; ok {
		_, err = tx.Exec(ctx, `
UPDATE driver_trip_progress SET `+col+` = $3
WHERE freight_id = $1 AND driver_id = $2
`, upd.FreightID, upd.DriverID, upd.At)
		if err != nil {
			return errors.Wrap(err, "stamp phase timestamp")
		}
	}

	// Delivered loads enter the worker's confirmation-deadline scan.
	if upd.Status == models.StatusDeliveredPendingConf {
		_, err = tx.Exec(ctx, `
UPDATE driver_trip_progress SET confirm_check_at = $3, confirm_notified_tier = -1
WHERE freight_id = $1 AND driver_id = $2
`, upd.FreightID, upd.DriverID, upd.At)
		if err != nil {
			return errors.Wrap(err, "arm confirmation check")
		}
	}

	_, err = tx.Exec(ctx, `
INSERT INTO freight_status_history (freight_id, status, changed_by, notes, location_lat, location_lng, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, upd.FreightID, upd.Status, upd.ChangedBy, upd.Notes, upd.Lat, upd.Lng, upd.At)
	if err != nil {
		return errors.Wrap(err, "insert history entry")
	}

	// Keep the assignment row converging toward trip progress.
	assignQ := `UPDATE freight_assignments SET status = $3, updated_at = now() WHERE freight_id = $1 AND driver_id = $2`
	if upd.Status == models.StatusDeliveredPendingConf {
		assignQ = `UPDATE freight_assignments SET status = $3, delivered_at = $4, updated_at = now() WHERE freight_id = $1 AND driver_id = $2`
		_, err = tx.Exec(ctx, assignQ, upd.FreightID, upd.DriverID, upd.Status, upd.At)
	} else {
		_, err = tx.Exec(ctx, assignQ, upd.FreightID, upd.DriverID, upd.Status)
	}
	if err != nil {
		return errors.Wrap(err, "converge assignment status")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

const progressSelect = `
SELECT id, freight_id, driver_id, assignment_id, current_status,
  accepted_at, loading_at, loaded_at, in_transit_at, delivered_at,
  last_lat, last_lng, driver_notes, updated_at
FROM driver_trip_progress`

func scanProgress(rows pgx.Rows) ([]*models.DriverTripProgress, error) {
	var out []*models.DriverTripProgress
	for rows.Next() {
		var p models.DriverTripProgress
		if err := rows.Scan(
			&p.ID, &p.FreightID, &p.DriverID, &p.AssignmentID, &p.CurrentStatus,
			&p.AcceptedAt, &p.LoadingAt, &p.LoadedAt, &p.InTransitAt, &p.DeliveredAt,
			&p.LastLat, &p.LastLng, &p.DriverNotes, &p.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan trip progress")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetProgress(ctx context.Context, freightID, driverID uint64) (*models.DriverTripProgress, error) {
	rows, err := s.db.Query(ctx, progressSelect+` WHERE freight_id = $1 AND driver_id = $2`, freightID, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "select trip progress")
	}
	defer rows.Close()

	ps, err := scanProgress(rows)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, models.ErrNotFound
	}
	return ps[0], nil
}

func (s *Storage) ListProgressByFreight(ctx context.Context, freightID uint64) ([]*models.DriverTripProgress, error) {
	rows, err := s.db.Query(ctx, progressSelect+` WHERE freight_id = $1 ORDER BY id ASC`, freightID)
	if err != nil {
		return nil, errors.Wrap(err, "select trip progress")
	}
	defer rows.Close()

	return scanProgress(rows)
}

// ListPendingProgress returns trip-progress rows of the producer's freights
// whose current status is DELIVERED_PENDING_CONFIRMATION.
func (s *Storage) ListPendingProgress(ctx context.Context, producerID uint64) ([]*models.DriverTripProgress, error) {
	rows, err := s.db.Query(ctx, `
SELECT p.id, p.freight_id, p.driver_id, p.assignment_id, p.current_status,
  p.accepted_at, p.loading_at, p.loaded_at, p.in_transit_at, p.delivered_at,
  p.last_lat, p.last_lng, p.driver_notes, p.updated_at
FROM driver_trip_progress p
JOIN freights f ON f.id = p.freight_id
WHERE f.producer_id = $1 AND p.current_status = $2
`, producerID, models.StatusDeliveredPendingConf)
	if err != nil {
		return nil, errors.Wrap(err, "select pending progress")
	}
	defer rows.Close()

	return scanProgress(rows)
}
