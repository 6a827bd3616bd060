package pgstore

import (
	"context"
	"time"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const recordColumns = `
  id, organization_id, tracking_number,
  status, carrier_code, carrier_name,
  origin_port, destination_port, eta, vessel_name, voyage_number,
  metadata, check_fail_count, last_error, next_check_at,
  created_at, updated_at
`

func scanRecord(row pgx.Row) (*models.TrackingRecord, error) {
	var r models.TrackingRecord
	if err := row.Scan(
		&r.ID, &r.OrganizationID, &r.TrackingNumber,
		&r.Status, &r.CarrierCode, &r.CarrierName,
		&r.OriginPort, &r.DestinationPort, &r.ETA, &r.VesselName, &r.VoyageNumber,
		&r.Metadata, &r.CheckFailCount, &r.LastError, &r.NextCheckAt,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Storage) GetTrackingRecord(ctx context.Context, orgID uint64, trackingNumber string) (*models.TrackingRecord, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+recordColumns+`
FROM tracking_records
WHERE organization_id = $1 AND tracking_number = $2
`, orgID, trackingNumber)

	rec, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking record")
	}

	rec.Events, err = s.ListTrackingEvents(ctx, rec.ID, 50, 0)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertTrackingRecord inserts or updates by (organization_id, tracking_number)
// atomically and appends the record's events. Concurrent refreshes both
// succeed; the last writer wins, which is fine for provider-sourced data.
func (s *Storage) UpsertTrackingRecord(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error) {
	now := time.Now().UTC()
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	nextCheckAt := rec.NextCheckAt
	if nextCheckAt.IsZero() {
		nextCheckAt = now.Add(time.Hour)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
INSERT INTO tracking_records (
  organization_id, tracking_number, status, carrier_code, carrier_name,
  origin_port, destination_port, eta, vessel_name, voyage_number,
  metadata, check_fail_count, last_error, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,NULL,$12,$13,$13)
ON CONFLICT (organization_id, tracking_number)
DO UPDATE SET
  status = EXCLUDED.status,
  carrier_code = EXCLUDED.carrier_code,
  carrier_name = EXCLUDED.carrier_name,
  origin_port = COALESCE(EXCLUDED.origin_port, tracking_records.origin_port),
  destination_port = COALESCE(EXCLUDED.destination_port, tracking_records.destination_port),
  eta = COALESCE(EXCLUDED.eta, tracking_records.eta),
  vessel_name = COALESCE(EXCLUDED.vessel_name, tracking_records.vessel_name),
  voyage_number = COALESCE(EXCLUDED.voyage_number, tracking_records.voyage_number),
  metadata = EXCLUDED.metadata,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = EXCLUDED.next_check_at,
  updated_at = EXCLUDED.updated_at
RETURNING id, created_at
`, rec.OrganizationID, rec.TrackingNumber, rec.Status, rec.CarrierCode, rec.CarrierName,
		rec.OriginPort, rec.DestinationPort, rec.ETA, rec.VesselName, rec.VoyageNumber,
		rec.Metadata, nextCheckAt.UTC(), updatedAt.UTC()).Scan(&id, &createdAt)
	if err != nil {
		return nil, errors.Wrap(err, "upsert tracking record")
	}

	for _, e := range rec.Events {
		loc := ""
		if e.Location != nil {
			loc = *e.Location
		}
		desc := ""
		if e.Description != nil {
			desc = *e.Description
		}
		_, err := tx.Exec(ctx, `
INSERT INTO tracking_record_events (
  record_id, raw_status, event_time, location, description, created_at
)
VALUES ($1,$2,$3,$4,$5, now())
ON CONFLICT (record_id, raw_status, event_time, location, description) DO NOTHING
`, id, e.RawStatus, e.EventTime.UTC(), loc, desc)
		if err != nil {
			return nil, errors.Wrap(err, "insert tracking event")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	out := *rec
	out.ID = id
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	out.NextCheckAt = nextCheckAt
	return &out, nil
}

func (s *Storage) ListTrackingEvents(ctx context.Context, recordID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, record_id, raw_status, event_time, location, description, created_at
FROM tracking_record_events
WHERE record_id = $1
ORDER BY event_time DESC
LIMIT $2 OFFSET $3
`, recordID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	out := []*models.TrackingEvent{}
	for rows.Next() {
		var e models.TrackingEvent
		var location, description string
		if err := rows.Scan(
			&e.ID, &e.RecordID, &e.RawStatus, &e.EventTime, &location, &description, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		if location != "" {
			e.Location = &location
		}
		if description != "" {
			e.Description = &description
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ClaimDueTrackings picks a batch of non-terminal records due for a refresh
// and leases them so other refresher instances skip them.
// Uses SELECT ... FOR UPDATE SKIP LOCKED, ordered by organization so a run
// walks tenants in order.
func (s *Storage) ClaimDueTrackings(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.TrackingRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+recordColumns+`
FROM tracking_records
WHERE next_check_at <= $1
  AND status NOT IN ($2, $3)
ORDER BY organization_id ASC, next_check_at ASC
LIMIT $4
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.StatusDelivered, models.StatusCancelled, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due tracking records")
	}

	var picked []*models.TrackingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due tracking record")
		}
		picked = append(picked, rec)
	}
	if rows.Err() != nil {
		rows.Close()
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	rows.Close()

	leaseUntil := now.UTC().Add(lease)
	for _, rec := range picked {
		_, err := tx.Exec(ctx, `UPDATE tracking_records SET next_check_at = $2 WHERE id = $1`, rec.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease tracking record")
		}
		rec.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ScheduleNextCheck records the refresher's scheduling outcome for a record,
// including the failure counter and last error on a failed pass.
func (s *Storage) ScheduleNextCheck(ctx context.Context, recordID uint64, next time.Time, failCount int32, lastErr *string) error {
	_, err := s.db.Exec(ctx, `
UPDATE tracking_records
SET next_check_at = $2, check_fail_count = $3, last_error = $4
WHERE id = $1
`, recordID, next.UTC(), failCount, lastErr)
	return errors.Wrap(err, "schedule next check")
}
