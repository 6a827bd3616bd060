package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShipCove/FreightTrack/config"
	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/ShipCove/FreightTrack/internal/providers/fake"
	"github.com/ShipCove/FreightTrack/internal/services/costing"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records map[string]*models.TrackingRecord
}

func storeKey(orgID uint64, num string) string {
	return fmt.Sprintf("%d|%s", orgID, num)
}

func (m *memStore) GetTrackingRecord(_ context.Context, orgID uint64, num string) (*models.TrackingRecord, error) {
	if m.records == nil {
		return nil, nil
	}
	return m.records[storeKey(orgID, num)], nil
}

func (m *memStore) UpsertTrackingRecord(_ context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error) {
	if m.records == nil {
		m.records = map[string]*models.TrackingRecord{}
	}
	saved := *rec
	saved.ID = uint64(len(m.records) + 1)
	m.records[storeKey(rec.OrganizationID, rec.TrackingNumber)] = &saved
	return &saved, nil
}

func (m *memStore) ListTrackingEvents(_ context.Context, _ uint64, _, _ int) ([]*models.TrackingEvent, error) {
	return []*models.TrackingEvent{}, nil
}

type memShipmentStore struct{}

func (memShipmentStore) GetShipment(context.Context, uint64) (*models.Shipment, error) {
	return nil, nil
}
func (memShipmentStore) ListShipmentProducts(context.Context, uint64) ([]*models.ShipmentProduct, error) {
	return nil, nil
}
func (memShipmentStore) UpdateProductTransportCosts(context.Context, uint64, float64, float64) error {
	return nil
}

type fakeConsumer struct{}

func (fakeConsumer) Consume(ctx context.Context, _ func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTrackAPI_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	svc := orchestrator.New(&memStore{}, nil, []providers.Provider{fake.New()}, 6*time.Hour, time.Minute)
	costSvc := costing.New(memShipmentStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trackAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		trackingTopic: "tracking.updated",
		shipmentTopic: "shipment.changed",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrackAPI(ctx, opts, svc, costSvc, fakeConsumer{}, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), "ok")

	// resolve through the deterministic local source
	payload, _ := json.Marshal(map[string]any{"tracking_number": "MSKU1234567"})
	req, err := http.NewRequest(http.MethodPost, "http://"+httpAddr+"/track", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("X-Org-ID", "7")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.True(t, out.Success)
	require.NotEmpty(t, out.Data.Status)

	cancel()
	require.Error(t, <-errCh)
}

func TestBuildProviders_ChainComposition(t *testing.T) {
	// nothing configured: only the deterministic local source
	provs := buildProviders(&config.Config{})
	require.Len(t, provs, 1)
	require.Equal(t, "fake", provs[0].Name())

	// with real sources configured, the local stub must stay out of the chain
	cfg := &config.Config{}
	cfg.FreightTrack.ScrapeHub.BaseURL = "http://scrapehub.local"
	cfg.FreightTrack.CargoPulse.BaseURL = "http://cargopulse.local"
	provs = buildProviders(cfg)
	require.Len(t, provs, 2)
	require.Equal(t, "scrapehub", provs[0].Name())
	require.Equal(t, "cargopulse", provs[1].Name())
	for _, p := range provs {
		require.NotEqual(t, "fake", p.Name())
	}
}
