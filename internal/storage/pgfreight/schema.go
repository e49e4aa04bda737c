package pgfreight

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS freights (
  id BIGSERIAL PRIMARY KEY,
  producer_id BIGINT NOT NULL,
  service_type TEXT NOT NULL,
  status TEXT NOT NULL,
  required_trucks INT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_freights_producer_id ON freights(producer_id)`,
		`
CREATE TABLE IF NOT EXISTS freight_assignments (
  id BIGSERIAL PRIMARY KEY,
  freight_id BIGINT NOT NULL REFERENCES freights(id) ON DELETE CASCADE,
  driver_id BIGINT NOT NULL,
  company_id BIGINT NULL,
  status TEXT NOT NULL,
  agreed_price NUMERIC(14,2) NOT NULL DEFAULT 0,
  accepted_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (freight_id, driver_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_freight_assignments_status ON freight_assignments(status)`,
		`
CREATE TABLE IF NOT EXISTS driver_trip_progress (
  id BIGSERIAL PRIMARY KEY,
  freight_id BIGINT NOT NULL REFERENCES freights(id) ON DELETE CASCADE,
  driver_id BIGINT NOT NULL,
  assignment_id BIGINT NULL,
  current_status TEXT NOT NULL,
  accepted_at TIMESTAMPTZ NULL,
  loading_at TIMESTAMPTZ NULL,
  loaded_at TIMESTAMPTZ NULL,
  in_transit_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  last_lat DOUBLE PRECISION NULL,
  last_lng DOUBLE PRECISION NULL,
  driver_notes TEXT NULL,
  confirm_notified_tier INT NOT NULL DEFAULT -1,
  confirm_check_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (freight_id, driver_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_driver_trip_progress_status ON driver_trip_progress(current_status)`,
		`CREATE INDEX IF NOT EXISTS idx_driver_trip_progress_confirm_check_at ON driver_trip_progress(confirm_check_at)`,
		`
CREATE TABLE IF NOT EXISTS freight_status_history (
  id BIGSERIAL PRIMARY KEY,
  freight_id BIGINT NOT NULL REFERENCES freights(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  changed_by BIGINT NOT NULL,
  notes TEXT NULL,
  location_lat DOUBLE PRECISION NULL,
  location_lng DOUBLE PRECISION NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_freight_status_history_freight_created ON freight_status_history(freight_id, created_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_freight_status_history_dedup ON freight_status_history(freight_id, changed_by, status, created_at DESC)`,
		// Read-only from this service; the payment system owns the writes.
		// Created here so local/dev/test environments boot self-contained.
		`
CREATE TABLE IF NOT EXISTS external_payments (
  id BIGSERIAL PRIMARY KEY,
  freight_id BIGINT NOT NULL,
  driver_id BIGINT NOT NULL,
  status TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_external_payments_key ON external_payments(freight_id, driver_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
