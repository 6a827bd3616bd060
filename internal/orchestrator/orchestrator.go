// Package orchestrator resolves live tracking status through a prioritized
// provider chain with caching and fallback.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/ShipCove/FreightTrack/internal/normalize"
	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/pkg/errors"
)

// Principal is the explicit org scope every entry point requires.
// There is no fallback identity; tests build their own.
type Principal struct {
	OrganizationID uint64
	UserID         uint64
}

type Store interface {
	// GetTrackingRecord returns (nil, nil) when no record exists.
	GetTrackingRecord(ctx context.Context, orgID uint64, trackingNumber string) (*models.TrackingRecord, error)
	// UpsertTrackingRecord inserts or updates atomically by
	// (organization_id, tracking_number) and appends new events.
	UpsertTrackingRecord(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error)
	ListTrackingEvents(ctx context.Context, recordID uint64, limit, offset int) ([]*models.TrackingEvent, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type ResolveRequest struct {
	TrackingNumber string
	CarrierHint    string
	ForceRefresh   bool
}

type Service struct {
	store     Store
	cache     BytesCache
	chain     []providers.Provider
	freshness time.Duration
	cacheTTL  time.Duration

	now func() time.Time
}

// New builds a service over an explicit, ordered provider set. The chain is
// stable-sorted by priority so same-priority adapters keep registration order.
func New(store Store, cache BytesCache, provs []providers.Provider, freshness, cacheTTL time.Duration) *Service {
	chain := append([]providers.Provider(nil), provs...)
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Priority() < chain[j].Priority() })

	if freshness <= 0 {
		freshness = 6 * time.Hour
	}
	return &Service{
		store:     store,
		cache:     cache,
		chain:     chain,
		freshness: freshness,
		cacheTTL:  cacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Resolve runs the full orchestration pass: cache, then the provider chain
// sequentially in priority order with early exit. The returned error is non-nil
// only for store failures; everything else is encoded in the result.
func (s *Service) Resolve(ctx context.Context, p Principal, req ResolveRequest) (*TrackResult, error) {
	if req.TrackingNumber == "" {
		return failure(FailureValidation, "tracking number is required"), nil
	}
	if p.OrganizationID == 0 {
		return failure(FailureValidation, "organization scope is required"), nil
	}

	if !req.ForceRefresh {
		if rec := s.lookupFresh(ctx, p.OrganizationID, req.TrackingNumber); rec != nil {
			return &TrackResult{
				Success: true,
				Record:  rec,
				Meta:    Meta{Cached: true},
			}, nil
		}
	}

	candidates := s.candidates(req.CarrierHint)
	if len(candidates) == 0 {
		return failure(FailureNotFound, "no tracking provider covers this carrier"), nil
	}

	payload, meta, failResult := s.runChain(ctx, candidates, req)
	if failResult != nil {
		return failResult, nil
	}

	rec := s.buildRecord(p.OrganizationID, req, payload)
	stored, err := s.store.UpsertTrackingRecord(ctx, rec)
	if err != nil {
		// The resolved data may be lost; this must never be swallowed.
		return nil, errors.Wrap(err, "persist tracking record")
	}

	s.cacheRecord(ctx, stored)

	return &TrackResult{Success: true, Record: stored, Meta: meta}, nil
}

// runChain invokes candidates sequentially and stops at the first usable
// answer. Sequential on purpose: a paid aggregator must not be billed when a
// cheaper provider already answered.
func (s *Service) runChain(ctx context.Context, candidates []providers.Provider, req ResolveRequest) (providers.Payload, Meta, *TrackResult) {
	bestKind := FailureNone
	bestErr := ""

	for i, prov := range candidates {
		started := s.now()
		payload, err := prov.Track(ctx, req.TrackingNumber, req.CarrierHint)
		elapsed := s.now().Sub(started).Milliseconds()

		if err != nil {
			if ve, ok := providers.AsValidation(err); ok {
				// Malformed input stays malformed at every provider.
				return providers.Payload{}, Meta{}, failure(FailureValidation, ve.Error())
			}
			kind := classify(err)
			if specificity(kind) > specificity(bestKind) {
				bestKind, bestErr = kind, err.Error()
			}
			slog.Warn("tracking provider failed",
				"provider", prov.Name(), "tracking_number", req.TrackingNumber, "error", err.Error())
			continue
		}

		if payload.Empty() {
			if specificity(FailureNotFound) > specificity(bestKind) {
				bestKind, bestErr = FailureNotFound, fmt.Sprintf("%s returned no data", prov.Name())
			}
			continue
		}

		return payload, Meta{
			Provider:       prov.Name(),
			FallbackUsed:   i > 0,
			ResponseTimeMS: elapsed,
		}, nil
	}

	if bestKind == FailureNone {
		bestKind, bestErr = FailureUnavailable, "all providers failed"
	}
	return providers.Payload{}, Meta{}, failure(bestKind, bestErr)
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, providers.ErrNotFound):
		return FailureNotFound
	case errors.Is(err, providers.ErrRateLimited):
		return FailureRateLimited
	default:
		return FailureUnavailable
	}
}

// candidates filters by CanHandle only when a hint was supplied, then relies
// on the pre-sorted chain for ordering.
func (s *Service) candidates(carrierHint string) []providers.Provider {
	if carrierHint == "" {
		return s.chain
	}
	out := make([]providers.Provider, 0, len(s.chain))
	for _, p := range s.chain {
		if p.CanHandle(carrierHint) {
			out = append(out, p)
		}
	}
	return out
}

// lookupFresh is best effort: cache and store misses or errors just mean a
// provider pass happens.
func (s *Service) lookupFresh(ctx context.Context, orgID uint64, trackingNumber string) *models.TrackingRecord {
	if s.cache != nil && s.cacheTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(orgID, trackingNumber)); err == nil && ok {
			var rec models.TrackingRecord
			if json.Unmarshal(b, &rec) == nil && s.fresh(&rec) {
				return &rec
			}
		}
	}

	rec, err := s.store.GetTrackingRecord(ctx, orgID, trackingNumber)
	if err != nil {
		slog.Error("tracking record lookup", "tracking_number", trackingNumber, "error", err.Error())
		return nil
	}
	if rec == nil || !s.fresh(rec) {
		return nil
	}
	s.cacheRecord(ctx, rec)
	return rec
}

// fresh: terminal records never refresh again; live ones expire after the
// freshness window.
func (s *Service) fresh(rec *models.TrackingRecord) bool {
	if models.IsTerminalStatus(rec.Status) {
		return true
	}
	return s.now().Sub(rec.UpdatedAt) < s.freshness
}

func (s *Service) buildRecord(orgID uint64, req ResolveRequest, payload providers.Payload) *models.TrackingRecord {
	now := s.now()

	carrierCode := payload.CarrierCode
	carrierName := payload.CarrierName
	if carrierName == "" {
		carrierName = req.CarrierHint
	}

	rec := &models.TrackingRecord{
		OrganizationID:  orgID,
		TrackingNumber:  req.TrackingNumber,
		Status:          normalize.Status(payload.Status),
		CarrierCode:     carrierCode,
		CarrierName:     carrierName,
		OriginPort:      payload.OriginPort,
		DestinationPort: payload.DestinationPort,
		ETA:             payload.ETA,
		VesselName:      payload.VesselName,
		VoyageNumber:    payload.VoyageNumber,
		Metadata:        payload.Metadata,
		UpdatedAt:       now,
	}
	for _, e := range payload.Events {
		ev := &models.TrackingEvent{
			EventTime: e.Time,
			RawStatus: e.RawStatus,
		}
		if e.Location != "" {
			loc := e.Location
			ev.Location = &loc
		}
		if e.Description != "" {
			d := e.Description
			ev.Description = &d
		}
		rec.Events = append(rec.Events, ev)
	}
	return rec
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.TrackingRecord) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(rec.OrganizationID, rec.TrackingNumber), b, s.cacheTTL)
}

// RefreshCache re-primes the redis entry from the store. Used by the kafka
// consumer when a refresher instance updated the record out of band. A record
// gone from the store drops its cache entry instead of serving stale data.
func (s *Service) RefreshCache(ctx context.Context, orgID uint64, trackingNumber string) error {
	rec, err := s.store.GetTrackingRecord(ctx, orgID, trackingNumber)
	if err != nil {
		return errors.Wrap(err, "reload tracking record")
	}
	if rec == nil {
		if s.cache != nil {
			return errors.Wrap(s.cache.Del(ctx, currentKey(orgID, trackingNumber)), "drop cache entry")
		}
		return nil
	}
	s.cacheRecord(ctx, rec)
	return nil
}

// CheckExisting reports which of the given numbers already have a record.
// Store-only: a batch check must never fan out to providers.
func (s *Service) CheckExisting(ctx context.Context, p Principal, trackingNumbers []string) (*CheckReport, error) {
	report := &CheckReport{Total: len(trackingNumbers)}
	for _, num := range trackingNumbers {
		item := CheckItem{TrackingNumber: num}
		if num != "" {
			rec, err := s.store.GetTrackingRecord(ctx, p.OrganizationID, num)
			if err != nil {
				return nil, errors.Wrap(err, "check tracking record")
			}
			if rec != nil {
				item.Exists = true
				item.Record = rec
			}
		}
		if item.Exists {
			report.Found++
		} else {
			report.NotFound++
		}
		report.Items = append(report.Items, item)
	}
	if report.Total > 0 {
		report.FoundPercentage = float64(report.Found) / float64(report.Total) * 100
	}
	return report, nil
}

// ErrRecordNotFound marks a lookup for a tracking number the org has no
// record of. Callers distinguish it from store failures.
var ErrRecordNotFound = errors.New("tracking record not found")

// Events lists stored events for a tracking number, newest first.
func (s *Service) Events(ctx context.Context, p Principal, trackingNumber string, limit, offset int) ([]*models.TrackingEvent, error) {
	if trackingNumber == "" {
		return nil, errors.New("trackingNumber is required")
	}
	rec, err := s.store.GetTrackingRecord(ctx, p.OrganizationID, trackingNumber)
	if err != nil {
		return nil, errors.Wrap(err, "load tracking record")
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return s.store.ListTrackingEvents(ctx, rec.ID, limit, offset)
}

func currentKey(orgID uint64, trackingNumber string) string {
	return fmt.Sprintf("tracking:%d:%s:current", orgID, trackingNumber)
}
