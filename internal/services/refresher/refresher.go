// Package refresher periodically re-checks non-terminal tracking records
// against the provider chain and reschedules them.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShipCove/FreightTrack/internal/broker/messages"
	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueTrackings(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.TrackingRecord, error)
	ScheduleNextCheck(ctx context.Context, recordID uint64, next time.Time, failCount int32, lastErr *string) error
}

// Resolver runs the provider chain for one record. Satisfied by
// orchestrator.Service.
type Resolver interface {
	Resolve(ctx context.Context, p orchestrator.Principal, req orchestrator.ResolveRequest) (*orchestrator.TrackResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Refresher struct {
	repo     Repository
	resolver Resolver
	producer Producer
	rl       RateLimiter

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	carrierRateLimits  map[string]int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalUpdated        atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	orgsSeen            sync.Map // orgID -> struct{}
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, resolver Resolver, producer Producer, rl RateLimiter, topic string) *Refresher {
	return &Refresher{
		repo: repo, resolver: resolver, producer: producer, rl: rl, topic: topic,
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:       15 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (r *Refresher) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Refresher {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	if rlPerMin > 0 {
		r.rateLimitPerMinute = rlPerMin
	}
	return r
}

func (r *Refresher) WithPlanner(cfg PlannerConfig) *Refresher {
	r.planner = NewPlanner(cfg, nil)
	return r
}

// WithCarrierRateLimits sets per-carrier-code overrides of the global
// requests-per-minute limit.
func (r *Refresher) WithCarrierRateLimits(limits map[string]int) *Refresher {
	if len(limits) == 0 {
		return r
	}
	r.carrierRateLimits = make(map[string]int64, len(limits))
	for code, lim := range limits {
		if lim > 0 {
			r.carrierRateLimits[code] = int64(lim)
		}
	}
	return r
}

// Trigger forces an immediate refresh cycle (best-effort, non-blocking).
func (r *Refresher) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt              time.Time  `json:"started_at"`
	LastCycleAt            *time.Time `json:"last_cycle_at,omitempty"`
	LastTriggerAt          *time.Time `json:"last_trigger_at,omitempty"`
	TotalShipments         int64      `json:"total_shipments"`
	Updated                int64      `json:"updated"`
	Errors                 int64      `json:"errors"`
	OrganizationsProcessed int        `json:"organizations_processed"`
	InFlight               int64      `json:"in_flight"`
	LastError              string     `json:"last_error,omitempty"`
}

func (r *Refresher) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalShipments: r.totalClaimed.Load(),
		Updated:        r.totalUpdated.Load(),
		Errors:         r.totalErrors.Load(),
		InFlight:       r.inFlight.Load(),
	}
	r.orgsSeen.Range(func(_, _ any) bool {
		st.OrganizationsProcessed++
		return true
	})
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ClaimDueTrackings(ctx, now, r.batchSize, r.lease)
	if err != nil {
		slog.Error("claim due tracking records", "error", err.Error())
		r.setLastError(err)
		return
	}
	r.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, rec := range items {
		sem <- struct{}{}
		wg.Add(1)
		recCopy := rec
		r.inFlight.Add(1)
		go func() {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			r.orgsSeen.Store(recCopy.OrganizationID, struct{}{})
			if err := r.processOne(ctx, recCopy); err != nil {
				r.totalErrors.Add(1)
				r.setLastError(err)
				slog.Error("refresh tracking record",
					"record_id", recCopy.ID,
					"tracking_number", recCopy.TrackingNumber,
					"error", err.Error())
			}
		}()
	}
	wg.Wait()
}

func (r *Refresher) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}

func (r *Refresher) processOne(ctx context.Context, rec *models.TrackingRecord) error {
	now := time.Now().UTC()

	if r.rl != nil && r.rateLimitPerMinute > 0 {
		limit := r.rateLimitPerMinute
		if override, ok := r.carrierRateLimits[rec.CarrierCode]; ok {
			limit = override
		}

		minuteKey := fmt.Sprintf("rl:carrier:%s:%s", rec.CarrierCode, now.Format("200601021504"))
		allowed, n, err := r.rl.Allow(ctx, minuteKey, limit, 70*time.Second)
		if err != nil {
			return errors.Wrap(err, "rate limiter")
		}
		if !allowed {
			// Over budget for this carrier this minute. Push the record a
			// little and let a later cycle pick it up.
			slog.Warn("carrier rate limit exceeded", "carrier", rec.CarrierCode, "count", n)
			return r.repo.ScheduleNextCheck(ctx, rec.ID, now.Add(time.Minute), rec.CheckFailCount, rec.LastError)
		}
	}

	principal := orchestrator.Principal{OrganizationID: rec.OrganizationID}
	res, err := r.resolver.Resolve(ctx, principal, orchestrator.ResolveRequest{
		TrackingNumber: rec.TrackingNumber,
		CarrierHint:    rec.CarrierCode,
		ForceRefresh:   true,
	})
	if err != nil {
		nextFail := rec.CheckFailCount + 1
		msg := err.Error()
		next := now.Add(r.planner.BackoffDelay(nextFail))
		if schedErr := r.repo.ScheduleNextCheck(ctx, rec.ID, next, nextFail, &msg); schedErr != nil {
			return schedErr
		}
		return err
	}

	if !res.Success {
		r.totalErrors.Add(1)
		r.setLastError(errors.New(res.Err))
		slog.Error("refresh tracking record failed",
			"record_id", rec.ID,
			"tracking_number", rec.TrackingNumber,
			"kind", string(res.Failure),
			"error", res.Err)

		nextFail := rec.CheckFailCount + 1
		next := now.Add(r.planner.BackoffDelay(nextFail))
		if !res.Failure.Retryable() {
			// A definitive not_found / validation answer is not a transient
			// fault; check again on the regular cadence instead of hammering.
			next = now.Add(r.planner.NextCheckDelay(rec.Status))
		}
		msg := res.Err
		return r.repo.ScheduleNextCheck(ctx, rec.ID, next, nextFail, &msg)
	}

	r.totalUpdated.Add(1)

	next := now.Add(r.planner.NextCheckDelay(res.Record.Status))
	if err := r.repo.ScheduleNextCheck(ctx, rec.ID, next, 0, nil); err != nil {
		return err
	}

	return r.publishUpdated(ctx, res, now)
}

func (r *Refresher) publishUpdated(ctx context.Context, res *orchestrator.TrackResult, checkedAt time.Time) error {
	msg := messages.TrackingUpdated{
		OrganizationID: res.Record.OrganizationID,
		TrackingNumber: res.Record.TrackingNumber,
		Status:         res.Record.Status,
		Provider:       res.Meta.Provider,
		CheckedAt:      checkedAt,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	key := []byte(fmt.Sprintf("%d:%s", msg.OrganizationID, msg.TrackingNumber))
	// Kafka may still be warming up right after a compose start; retry a bit
	// before giving up on the notification.
	var pubErr error
	for i := 0; i < 10; i++ {
		if pubErr = r.producer.Publish(ctx, r.topic, key, b); pubErr == nil {
			return nil
		}
		time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
	}
	return pubErr
}
