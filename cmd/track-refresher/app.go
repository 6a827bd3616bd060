package main

import (
	"context"
	"fmt"
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
	"github.com/ShipCove/FreightTrack/internal/services/refresher"
	"github.com/ShipCove/FreightTrack/internal/storage/pgstore"
)

// refresherStore is what the refresher binary needs from storage: the claim
// queue plus the record store the orchestrator reads and writes.
type refresherStore interface {
	refresher.Repository
	orchestrator.Store
}

// The refresher owns its own stack so it can run on a separate box from the
// API instances.
type refresherFactories struct {
	newStorage     func(cfg *config.Config) (st refresherStore, closeFn func(), err error)
	newProducer    func(cfg *config.Config) refresher.Producer
	newRateLimiter func(cfg *config.Config) refresher.RateLimiter
	newResolver    func(cfg *config.Config, st orchestrator.Store) refresher.Resolver
}

func defaultRefresherFactories() refresherFactories {
	return refresherFactories{
		newStorage: func(cfg *config.Config) (refresherStore, func(), error) {
			st, err := pgstore.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) refresher.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newResolver: func(cfg *config.Config, st orchestrator.Store) refresher.Resolver {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			rc := rediscache.New(redisAddr)

			freshness := time.Duration(cfg.FreightTrack.FreshnessWindowHours) * time.Hour
			cacheTTL := time.Duration(cfg.FreightTrack.CurrentStatusTTLSeconds) * time.Second
			if cacheTTL <= 0 {
				cacheTTL = 10 * time.Minute
			}
			return orchestrator.New(st, rc, buildProviders(cfg), freshness, cacheTTL)
		},
	}
}

// buildProviders mirrors track-api: real sources only, with the deterministic
// local source as a fallback for a fully unconfigured dev setup.
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

func newRefresher(cfg *config.Config, f refresherFactories) (*refresher.Refresher, func(), error) {
	topic := cfg.Kafka.TrackingUpdatedTopicName
	if topic == "" {
		topic = "tracking.updated"
	}

	pollInterval := time.Duration(cfg.FreightTrack.RefresherPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	batchSize := cfg.FreightTrack.RefresherBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.FreightTrack.RefresherConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.FreightTrack.RefresherLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.FreightTrack.RefresherRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	r := refresher.New(st, f.newResolver(cfg, st), f.newProducer(cfg), f.newRateLimiter(cfg), topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithCarrierRateLimits(cfg.FreightTrack.RefresherCarrierRateLimits).
		WithPlanner(plannerConfigFrom(cfg))

	return r, closeFn, nil
}

func plannerConfigFrom(cfg *config.Config) refresher.PlannerConfig {
	ft := cfg.FreightTrack
	return refresher.PlannerConfig{
		InTransitMinDelay: time.Duration(ft.RefresherNextCheckInTransitMinSeconds) * time.Second,
		InTransitMaxDelay: time.Duration(ft.RefresherNextCheckInTransitMaxSeconds) * time.Second,
		DefaultDelay:      time.Duration(ft.RefresherNextCheckUnknownSeconds) * time.Second,
		Backoff1:          time.Duration(ft.RefresherBackoff1Seconds) * time.Second,
		Backoff2:          time.Duration(ft.RefresherBackoff2Seconds) * time.Second,
		Backoff3:          time.Duration(ft.RefresherBackoff3Seconds) * time.Second,
		Backoff4:          time.Duration(ft.RefresherBackoff4Seconds) * time.Second,
	}
}

func RunRefresher(ctx context.Context, cfg *config.Config, f refresherFactories) error {
	r, closeFn, err := newRefresher(cfg, f)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return r.Run(ctx)
}
