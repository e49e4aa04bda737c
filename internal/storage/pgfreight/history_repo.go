package pgfreight

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

// AppendHistory writes one audit entry outside a transition (cancellations,
// producer confirmations). Transition writes go through ApplyTransition.
func (s *Storage) AppendHistory(ctx context.Context, e *models.StatusHistoryEntry) error {
	at := e.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO freight_status_history (freight_id, status, changed_by, notes, location_lat, location_lng, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, e.FreightID, e.Status, e.ChangedBy, e.Notes, e.Lat, e.Lng, at)
	return errors.Wrap(err, "insert history entry")
}

// ListHistory returns the freight's audit trail in ascending timestamp order,
// optionally narrowed to a single driver's stream.
func (s *Storage) ListHistory(ctx context.Context, freightID uint64, driverID *uint64) ([]*models.StatusHistoryEntry, error) {
	q := `
SELECT id, freight_id, status, changed_by, notes, location_lat, location_lng, created_at
FROM freight_status_history
WHERE freight_id = $1
ORDER BY created_at ASC, id ASC
`
	args := []any{freightID}
	if driverID != nil {
		q = `
SELECT id, freight_id, status, changed_by, notes, location_lat, location_lng, created_at
FROM freight_status_history
WHERE freight_id = $1 AND changed_by = $2
ORDER BY created_at ASC, id ASC
`
		args = append(args, *driverID)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	var out []*models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.FreightID, &e.Status, &e.ChangedBy, &e.Notes, &e.Lat, &e.Lng, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// HasRecentHistory reports whether the same (driver, status) was already
// recorded for the freight inside the window. Backs the duplicate-suppression
// rule for client retries and double-taps.
func (s *Storage) HasRecentHistory(ctx context.Context, freightID, driverID uint64, status string, window time.Duration) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM freight_status_history
  WHERE freight_id = $1 AND changed_by = $2 AND status = $3 AND created_at > $4
)
`, freightID, driverID, status, time.Now().UTC().Add(-window)).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "select recent history")
	}
	return exists, nil
}
