package pgfreight

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/cargaviva/freightcore/internal/models"
)

type FreightCreateInput struct {
	ProducerID     uint64
	ServiceType    string
	RequiredTrucks int32
}

func (s *Storage) CreateFreight(ctx context.Context, in FreightCreateInput) (*models.Freight, error) {
	now := time.Now().UTC()
	if in.RequiredTrucks <= 0 {
		in.RequiredTrucks = 1
	}
	if in.ServiceType == "" {
		in.ServiceType = models.ServiceTypeDefault
	}

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO freights (producer_id, service_type, status, required_trucks, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
RETURNING id
`, in.ProducerID, in.ServiceType, models.StatusOpen, in.RequiredTrucks, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert freight")
	}

	return s.GetFreight(ctx, id)
}

func (s *Storage) GetFreight(ctx context.Context, id uint64) (*models.Freight, error) {
	var f models.Freight
	err := s.db.QueryRow(ctx, `
SELECT id, producer_id, service_type, status, required_trucks, created_at, updated_at
FROM freights
WHERE id = $1
`, id).Scan(&f.ID, &f.ProducerID, &f.ServiceType, &f.Status, &f.RequiredTrucks, &f.CreatedAt, &f.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select freight")
	}
	return &f, nil
}

func (s *Storage) ListFreightsByProducer(ctx context.Context, producerID uint64) ([]*models.Freight, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, producer_id, service_type, status, required_trucks, created_at, updated_at
FROM freights
WHERE producer_id = $1
ORDER BY created_at DESC
`, producerID)
	if err != nil {
		return nil, errors.Wrap(err, "select freights")
	}
	defer rows.Close()

	var out []*models.Freight
	for rows.Next() {
		var f models.Freight
		if err := rows.Scan(&f.ID, &f.ProducerID, &f.ServiceType, &f.Status, &f.RequiredTrucks, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan freight")
		}
		out = append(out, &f)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SetFreightStatus mutates the freight row itself. Only the reconciliation
// engine calls this, and only when moving into a terminal status.
func (s *Storage) SetFreightStatus(ctx context.Context, freightID uint64, status string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE freights SET status = $2, updated_at = now() WHERE id = $1
`, freightID, status)
	if err != nil {
		return errors.Wrap(err, "update freight status")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
