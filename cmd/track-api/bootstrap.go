package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ShipCove/FreightTrack/config"
	"github.com/ShipCove/FreightTrack/internal/broker/kafka"
	"github.com/ShipCove/FreightTrack/internal/cache/rediscache"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/ShipCove/FreightTrack/internal/providers/cargopulse"
	"github.com/ShipCove/FreightTrack/internal/providers/fake"
	"github.com/ShipCove/FreightTrack/internal/providers/scrapehub"
	"github.com/ShipCove/FreightTrack/internal/providers/trackmile"
	"github.com/ShipCove/FreightTrack/internal/services/costing"
	"github.com/ShipCove/FreightTrack/internal/storage/pgstore"
)

type trackAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   trackAPIOpts

	svc     *orchestrator.Service
	costSvc *costing.Service

	trackingConsumer *kafka.Consumer
	shipmentConsumer *kafka.Consumer

	closeDB func()
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.FreightTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.FreightTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-api"
	}
	trackingTopic := cfg.Kafka.TrackingUpdatedTopicName
	if trackingTopic == "" {
		trackingTopic = "tracking.updated"
	}
	shipmentTopic := cfg.Kafka.ShipmentChangedTopicName
	if shipmentTopic == "" {
		shipmentTopic = "shipment.changed"
	}

	freshness := time.Duration(cfg.FreightTrack.FreshnessWindowHours) * time.Hour
	if freshness <= 0 {
		freshness = 6 * time.Hour
	}
	cacheTTL := time.Duration(cfg.FreightTrack.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	svc := orchestrator.New(st, rc, buildProviders(cfg), freshness, cacheTTL)
	costSvc := costing.New(st, nil)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	trackingConsumer := kafka.NewConsumer(brokers, trackingTopic, consumerGroup)
	shipmentConsumer := kafka.NewConsumer(brokers, shipmentTopic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trackAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			trackingTopic: trackingTopic,
			shipmentTopic: shipmentTopic,
			consumerGroup: consumerGroup,
		},
		svc:              svc,
		costSvc:          costSvc,
		trackingConsumer: trackingConsumer,
		shipmentConsumer: shipmentConsumer,
		closeDB:          st.Close,
	}
}

// buildProviders assembles the resolve chain from configured sources. Sources
// without a base_url are skipped. The deterministic local source is a
// dev/demo fallback only: with any real source configured it must stay out of
// the chain, or it would fabricate records whenever the real ones fail.
func buildProviders(cfg *config.Config) []providers.Provider {
	var out []providers.Provider
	if p := cfg.FreightTrack.ScrapeHub; p.BaseURL != "" {
		out = append(out, scrapehub.New(p.BaseURL, p.APIKey, providerTimeout(p)))
	}
	if p := cfg.FreightTrack.TrackMile; p.BaseURL != "" {
		out = append(out, trackmile.New(p.BaseURL, p.APIKey, providerTimeout(p)))
	}
	if p := cfg.FreightTrack.CargoPulse; p.BaseURL != "" {
		out = append(out, cargopulse.New(p.BaseURL, p.APIKey, providerTimeout(p)))
	}
	if len(out) == 0 {
		out = append(out, fake.New())
	}
	return out
}

func providerTimeout(p config.ProviderConfig) time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgstore.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.trackingConsumer != nil {
		_ = a.trackingConsumer.Close()
	}
	if a.shipmentConsumer != nil {
		_ = a.shipmentConsumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}
