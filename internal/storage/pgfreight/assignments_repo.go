package pgfreight

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cargaviva/freightcore/internal/models"
)

type AssignmentCreateInput struct {
	FreightID   uint64
	DriverID    uint64
	CompanyID   *uint64
	AgreedPrice decimal.Decimal
}

// CreateAssignment matches a driver to one truck-load of a freight. One row
// per (freight, driver); re-matching the same driver is a no-op returning the
// existing row.
func (s *Storage) CreateAssignment(ctx context.Context, in AssignmentCreateInput) (*models.FreightAssignment, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO freight_assignments (freight_id, driver_id, company_id, status, agreed_price, accepted_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (freight_id, driver_id)
DO UPDATE SET updated_at = freight_assignments.updated_at
RETURNING id
`, in.FreightID, in.DriverID, in.CompanyID, models.StatusAccepted, in.AgreedPrice, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert assignment")
	}

	return s.getAssignmentByID(ctx, id)
}

func (s *Storage) getAssignmentByID(ctx context.Context, id uint64) (*models.FreightAssignment, error) {
	rows, err := s.db.Query(ctx, assignmentSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select assignment")
	}
	defer rows.Close()

	as, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	if len(as) == 0 {
		return nil, models.ErrNotFound
	}
	return as[0], nil
}

const assignmentSelect = `
SELECT id, freight_id, driver_id, company_id, status, agreed_price, accepted_at, delivered_at, updated_at
FROM freight_assignments`

func scanAssignments(rows pgx.Rows) ([]*models.FreightAssignment, error) {
	var out []*models.FreightAssignment
	for rows.Next() {
		var a models.FreightAssignment
		if err := rows.Scan(
			&a.ID, &a.FreightID, &a.DriverID, &a.CompanyID,
			&a.Status, &a.AgreedPrice, &a.AcceptedAt, &a.DeliveredAt, &a.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, &a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetAssignment(ctx context.Context, freightID, driverID uint64) (*models.FreightAssignment, error) {
	rows, err := s.db.Query(ctx, assignmentSelect+` WHERE freight_id = $1 AND driver_id = $2`, freightID, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "select assignment")
	}
	defer rows.Close()

	as, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	if len(as) == 0 {
		return nil, models.ErrNotFound
	}
	return as[0], nil
}

func (s *Storage) ListAssignmentsByFreight(ctx context.Context, freightID uint64) ([]*models.FreightAssignment, error) {
	rows, err := s.db.Query(ctx, assignmentSelect+` WHERE freight_id = $1 ORDER BY id ASC`, freightID)
	if err != nil {
		return nil, errors.Wrap(err, "select assignments")
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// SetAssignmentStatus keeps the assignment row converging toward the
// trip-progress record; delivered_at is stamped when the driver reports
// delivery.
func (s *Storage) SetAssignmentStatus(ctx context.Context, freightID, driverID uint64, status string) error {
	q := `UPDATE freight_assignments SET status = $3, updated_at = now() WHERE freight_id = $1 AND driver_id = $2`
	if status == models.StatusDeliveredPendingConf {
		q = `UPDATE freight_assignments SET status = $3, delivered_at = now(), updated_at = now() WHERE freight_id = $1 AND driver_id = $2`
	}
	_, err := s.db.Exec(ctx, q, freightID, driverID, status)
	return errors.Wrap(err, "update assignment status")
}

// ListPendingAssignments returns assignments of the producer's freights stuck
// in DELIVERED_PENDING_CONFIRMATION.
func (s *Storage) ListPendingAssignments(ctx context.Context, producerID uint64) ([]*models.FreightAssignment, error) {
	rows, err := s.db.Query(ctx, `
SELECT a.id, a.freight_id, a.driver_id, a.company_id, a.status, a.agreed_price, a.accepted_at, a.delivered_at, a.updated_at
FROM freight_assignments a
JOIN freights f ON f.id = a.freight_id
WHERE f.producer_id = $1 AND a.status = $2
`, producerID, models.StatusDeliveredPendingConf)
	if err != nil {
		return nil, errors.Wrap(err, "select pending assignments")
	}
	defer rows.Close()

	return scanAssignments(rows)
}
