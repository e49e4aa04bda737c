package pgfreight

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

// DueConfirmation is one delivered load the worker should look at: the
// delivery report plus the last urgency tier the producer was reminded about.
type DueConfirmation struct {
	FreightID    uint64
	DriverID     uint64
	ProducerID   uint64
	DeliveredAt  time.Time
	NotifiedTier int
}

// ClaimDueConfirmations picks delivered-pending loads whose confirm_check_at
// is due and leases them so a concurrent worker does not pick them up twice.
// Uses SELECT ... FOR UPDATE SKIP LOCKED like any other claim queue here.
func (s *Storage) ClaimDueConfirmations(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*DueConfirmation, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT p.freight_id, p.driver_id, f.producer_id, p.delivered_at, p.confirm_notified_tier
FROM driver_trip_progress p
JOIN freights f ON f.id = p.freight_id
WHERE p.current_status = $1
  AND p.confirm_check_at IS NOT NULL
  AND p.confirm_check_at <= $2
ORDER BY p.confirm_check_at ASC
LIMIT $3
FOR UPDATE OF p SKIP LOCKED
`, models.StatusDeliveredPendingConf, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due confirmations")
	}
	defer rows.Close()

	var picked []*DueConfirmation
	for rows.Next() {
		var d DueConfirmation
		var deliveredAt *time.Time
		if err := rows.Scan(&d.FreightID, &d.DriverID, &d.ProducerID, &deliveredAt, &d.NotifiedTier); err != nil {
			return nil, errors.Wrap(err, "scan due confirmation")
		}
		if deliveredAt == nil {
			// delivery report without a timestamp should not happen; skip it
			continue
		}
		d.DeliveredAt = *deliveredAt
		picked = append(picked, &d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, d := range picked {
		_, err := tx.Exec(ctx, `
UPDATE driver_trip_progress SET confirm_check_at = $3
WHERE freight_id = $1 AND driver_id = $2
`, d.FreightID, d.DriverID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease confirmation")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// MarkConfirmationNotified records the reminder tier already sent and
// schedules the next look.
func (s *Storage) MarkConfirmationNotified(ctx context.Context, freightID, driverID uint64, tier int, nextCheckAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE driver_trip_progress SET confirm_notified_tier = $3, confirm_check_at = $4
WHERE freight_id = $1 AND driver_id = $2
`, freightID, driverID, tier, nextCheckAt.UTC())
	return errors.Wrap(err, "mark confirmation notified")
}
