package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_records (
  id BIGSERIAL PRIMARY KEY,
  organization_id BIGINT NOT NULL,
  tracking_number TEXT NOT NULL,
  status TEXT NOT NULL,
  carrier_code TEXT NOT NULL DEFAULT '',
  carrier_name TEXT NOT NULL DEFAULT '',
  origin_port TEXT NULL,
  destination_port TEXT NULL,
  eta TIMESTAMPTZ NULL,
  vessel_name TEXT NULL,
  voyage_number TEXT NULL,
  metadata JSONB NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (organization_id, tracking_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_records_next_check_at ON tracking_records(next_check_at)`,
		`
CREATE TABLE IF NOT EXISTS tracking_record_events (
  id BIGSERIAL PRIMARY KEY,
  record_id BIGINT NOT NULL REFERENCES tracking_records(id) ON DELETE CASCADE,
  raw_status TEXT NOT NULL DEFAULT '',
  event_time TIMESTAMPTZ NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_record_events_record_time ON tracking_record_events(record_id, event_time DESC)`,
		// Idempotent appends: re-writing the same provider history is a no-op.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tracking_record_events_dedup ON tracking_record_events(record_id, raw_status, event_time, location, description)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  organization_id BIGINT NOT NULL,
  tracking_number TEXT NOT NULL DEFAULT '',
  carrier_name TEXT NOT NULL DEFAULT '',
  transport_mode TEXT NOT NULL DEFAULT '',
  freight_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  other_costs DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_org ON shipments(organization_id)`,
		`
CREATE TABLE IF NOT EXISTS shipment_products (
  id BIGSERIAL PRIMARY KEY,
  shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
  quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
  total_weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
  total_volume_cbm DOUBLE PRECISION NOT NULL DEFAULT 0,
  transport_unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  transport_total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_products_shipment ON shipment_products(shipment_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
