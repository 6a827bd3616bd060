package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShipCove/FreightTrack/config"
	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/ShipCove/FreightTrack/internal/services/refresher"
	"github.com/stretchr/testify/require"
)

type noopProducer struct{}

func (noopProducer) Publish(context.Context, string, []byte, []byte) error { return nil }

type emptyRepo struct{}

func (emptyRepo) ClaimDueTrackings(context.Context, time.Time, int, time.Duration) ([]*models.TrackingRecord, error) {
	return nil, nil
}
func (emptyRepo) ScheduleNextCheck(context.Context, uint64, time.Time, int32, *string) error {
	return nil
}

type noopResolver struct{}

func (noopResolver) Resolve(context.Context, orchestrator.Principal, orchestrator.ResolveRequest) (*orchestrator.TrackResult, error) {
	return &orchestrator.TrackResult{}, nil
}

func TestDefaultRefresherFactories_NonNil(t *testing.T) {
	f := defaultRefresherFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestBuildProviders_NoStubWithRealSources(t *testing.T) {
	provs := buildProviders(&config.Config{})
	require.Len(t, provs, 1)
	require.Equal(t, "fake", provs[0].Name())

	cfg := &config.Config{}
	cfg.FreightTrack.TrackMile.BaseURL = "http://trackmile.local"
	provs = buildProviders(cfg)
	require.Len(t, provs, 1)
	require.Equal(t, "trackmile", provs[0].Name())
}

func TestPlannerConfigFrom_SecondsTranslated(t *testing.T) {
	cfg := &config.Config{}
	cfg.FreightTrack.RefresherNextCheckInTransitMinSeconds = 60
	cfg.FreightTrack.RefresherNextCheckInTransitMaxSeconds = 120
	cfg.FreightTrack.RefresherBackoff1Seconds = 30

	pc := plannerConfigFrom(cfg)
	require.Equal(t, time.Minute, pc.InTransitMinDelay)
	require.Equal(t, 2*time.Minute, pc.InTransitMaxDelay)
	require.Equal(t, 30*time.Second, pc.Backoff1)
}

func TestRefresherHTTPServer_OpsEndpoints(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	ref := refresher.New(emptyRepo{}, noopResolver{}, noopProducer{}, nil, "t")
	cfg := &config.Config{}
	cfg.FreightTrack.RefresherBatchSize = 42

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runRefresherHTTPServer(ctx, refresherHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			onListen:    func(addr string) { addrCh <- addr },
			ref:         ref,
			cfg:         cfg,
		})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "total_shipments")

	resp, err = http.Get("http://" + addr + "/config")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), `"batchSize":42`)

	resp, err = http.Post("http://"+addr+"/trigger", "application/json", nil)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), "triggered")
	require.NotNil(t, ref.Stats().LastTriggerAt)

	resp, err = http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	require.Error(t, <-errCh)
}

type fakeStore struct{ emptyRepo }

func (fakeStore) GetTrackingRecord(context.Context, uint64, string) (*models.TrackingRecord, error) {
	return nil, nil
}
func (fakeStore) UpsertTrackingRecord(_ context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error) {
	return rec, nil
}
func (fakeStore) ListTrackingEvents(context.Context, uint64, int, int) ([]*models.TrackingEvent, error) {
	return nil, nil
}

func TestRunRefresher_ContextCanceled(t *testing.T) {
	calledClose := false
	f := refresherFactories{
		newStorage: func(*config.Config) (refresherStore, func(), error) {
			return fakeStore{}, func() { calledClose = true }, nil
		},
		newProducer:    func(*config.Config) refresher.Producer { return noopProducer{} },
		newRateLimiter: func(*config.Config) refresher.RateLimiter { return nil },
		newResolver: func(*config.Config, orchestrator.Store) refresher.Resolver {
			return noopResolver{}
		},
	}

	cfg := &config.Config{}
	cfg.FreightTrack.RefresherPollIntervalSeconds = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunRefresher(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
