package pgfreight

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

// SettledKey identifies a (freight, driver) pair the producer has already
// acted on through the payment subsystem.
type SettledKey struct {
	FreightID uint64
	DriverID  uint64
}

// ListSettledKeys reads the external payments view and returns the pairs in a
// "producer has acted" state (paid_by_producer, confirmed, accepted). A row
// merely proposed carries no producer decision and is ignored.
func (s *Storage) ListSettledKeys(ctx context.Context, producerID uint64) (map[SettledKey]struct{}, error) {
	rows, err := s.db.Query(ctx, `
SELECT ep.freight_id, ep.driver_id, ep.status
FROM external_payments ep
JOIN freights f ON f.id = ep.freight_id
WHERE f.producer_id = $1
`, producerID)
	if err != nil {
		return nil, errors.Wrap(err, "select settlements")
	}
	defer rows.Close()

	out := make(map[SettledKey]struct{})
	for rows.Next() {
		var r models.SettlementRecord
		if err := rows.Scan(&r.FreightID, &r.DriverID, &r.Status); err != nil {
			return nil, errors.Wrap(err, "scan settlement")
		}
		if models.SettlementActedOn(r.Status) {
			out[SettledKey{FreightID: r.FreightID, DriverID: r.DriverID}] = struct{}{}
		}
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// GetSettlement returns the payment record for a pair, ErrNotFound when the
// payment subsystem has not created one yet.
func (s *Storage) GetSettlement(ctx context.Context, freightID, driverID uint64) (*models.SettlementRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT freight_id, driver_id, status
FROM external_payments
WHERE freight_id = $1 AND driver_id = $2
ORDER BY id DESC
LIMIT 1
`, freightID, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "select settlement")
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return nil, errors.Wrap(rows.Err(), "rows")
		}
		return nil, models.ErrNotFound
	}
	var r models.SettlementRecord
	if err := rows.Scan(&r.FreightID, &r.DriverID, &r.Status); err != nil {
		return nil, errors.Wrap(err, "scan settlement")
	}
	return &r, nil
}
