package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "freighttrack_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/freighttrack_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func strptr(s string) *string { return &s }

func TestPGStore_TrackingFlow(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := &models.TrackingRecord{
		OrganizationID: 7,
		TrackingNumber: "MSKU1234567",
		Status:         models.StatusInTransit,
		CarrierCode:    "maersk",
		CarrierName:    "Maersk",
		OriginPort:     strptr("CNSHA"),
		Metadata:       map[string]any{"source": "scrapehub"},
		UpdatedAt:      now,
		NextCheckAt:    now.Add(-time.Minute),
		Events: []*models.TrackingEvent{
			{RawStatus: "SAILING", EventTime: now.Add(-24 * time.Hour), Location: strptr("Shanghai")},
		},
	}

	saved, err := st.UpsertTrackingRecord(ctx, rec)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	// missing record comes back as nil, nil
	none, err := st.GetTrackingRecord(ctx, 7, "NOPE")
	require.NoError(t, err)
	require.Nil(t, none)

	// other tenants never see the record
	none, err = st.GetTrackingRecord(ctx, 8, "MSKU1234567")
	require.NoError(t, err)
	require.Nil(t, none)

	got, err := st.GetTrackingRecord(ctx, 7, "MSKU1234567")
	require.NoError(t, err)
	require.Equal(t, saved.ID, got.ID)
	require.Equal(t, models.StatusInTransit, got.Status)
	require.Len(t, got.Events, 1)

	// second upsert keeps the same row, appends only new events
	rec.Status = models.StatusAtPort
	rec.Events = append(rec.Events, &models.TrackingEvent{
		RawStatus: "DISCHARGED", EventTime: now, Location: strptr("Rotterdam"),
	})
	again, err := st.UpsertTrackingRecord(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, saved.ID, again.ID)

	evs, err := st.ListTrackingEvents(ctx, saved.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.True(t, !evs[0].EventTime.Before(evs[1].EventTime))
}

func TestPGStore_ClaimAndSchedule(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	now := time.Now().UTC()
	due := &models.TrackingRecord{
		OrganizationID: 1, TrackingNumber: "DUE-1",
		Status: models.StatusInTransit, CarrierCode: "maersk", CarrierName: "Maersk",
		NextCheckAt: now.Add(-time.Minute),
	}
	notDue := &models.TrackingRecord{
		OrganizationID: 1, TrackingNumber: "LATER-1",
		Status: models.StatusInTransit, CarrierCode: "maersk", CarrierName: "Maersk",
		NextCheckAt: now.Add(time.Hour),
	}
	delivered := &models.TrackingRecord{
		OrganizationID: 1, TrackingNumber: "DONE-1",
		Status: models.StatusDelivered, CarrierCode: "maersk", CarrierName: "Maersk",
		NextCheckAt: now.Add(-time.Minute),
	}
	savedDue, err := st.UpsertTrackingRecord(ctx, due)
	require.NoError(t, err)
	_, err = st.UpsertTrackingRecord(ctx, notDue)
	require.NoError(t, err)
	_, err = st.UpsertTrackingRecord(ctx, delivered)
	require.NoError(t, err)

	lease := 10 * time.Second
	claimed, err := st.ClaimDueTrackings(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, savedDue.ID, claimed[0].ID)
	require.WithinDuration(t, now.Add(lease), claimed[0].NextCheckAt, 2*time.Second)

	// leased record is no longer due
	claimed, err = st.ClaimDueTrackings(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, claimed)

	next := now.Add(30 * time.Minute)
	msg := "carrier timeout"
	require.NoError(t, st.ScheduleNextCheck(ctx, savedDue.ID, next, 2, &msg))

	got, err := st.GetTrackingRecord(ctx, 1, "DUE-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), got.CheckFailCount)
	require.NotNil(t, got.LastError)
	require.Equal(t, "carrier timeout", *got.LastError)
	require.WithinDuration(t, next, got.NextCheckAt, time.Second)
}

func TestPGStore_ShipmentCosts(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	var shipmentID uint64
	err := st.db.QueryRow(ctx, `
INSERT INTO shipments (organization_id, tracking_number, carrier_name, transport_mode, freight_cost, other_costs)
VALUES (3, 'SEA-100', 'Maersk Line', 'sea', 90, 10)
RETURNING id
`).Scan(&shipmentID)
	require.NoError(t, err)

	var productID uint64
	err = st.db.QueryRow(ctx, `
INSERT INTO shipment_products (shipment_id, quantity, total_weight_kg, total_volume_cbm)
VALUES ($1, 4, 120, 2.5)
RETURNING id
`, shipmentID).Scan(&productID)
	require.NoError(t, err)

	sh, err := st.GetShipment(ctx, shipmentID)
	require.NoError(t, err)
	require.Equal(t, "sea", sh.TransportMode)
	require.InDelta(t, 90.0, sh.FreightCost, 1e-9)
	require.False(t, sh.CreatedAt.IsZero())
	require.False(t, sh.UpdatedAt.IsZero())

	missing, err := st.GetShipment(ctx, shipmentID+1000)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, st.UpdateProductTransportCosts(ctx, productID, 25, 100))

	products, err := st.ListShipmentProducts(ctx, shipmentID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.InDelta(t, 25.0, products[0].TransportUnitCost, 1e-9)
	require.InDelta(t, 100.0, products[0].TransportTotalCost, 1e-9)
}
