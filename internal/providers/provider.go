// Package providers defines the contract every tracking data source implements
// and the error taxonomy the orchestrator branches on.
package providers

import (
	"context"
	"time"
)

// Payload is the normalized output of a single provider call. It lives only for
// the duration of one orchestration pass.
type Payload struct {
	CarrierCode string
	CarrierName string

	// Raw provider status; canonical mapping happens in the orchestrator.
	Status string

	OriginPort      *string
	DestinationPort *string
	ETA             *time.Time
	VesselName      *string
	VoyageNumber    *string

	Events []Event

	// Raw provider response, preserved verbatim for audit/debugging.
	Metadata map[string]any
}

type Event struct {
	Time        time.Time
	Location    string
	Description string
	RawStatus   string
}

// Empty reports whether the provider answered without any usable data.
// The orchestrator treats such responses as NotFound and keeps trying.
func (p Payload) Empty() bool {
	return p.Status == "" && len(p.Events) == 0
}

// Provider is a single tracking capability. Exactly one outbound call per Track
// invocation; retries and fallback belong to the orchestrator.
type Provider interface {
	Name() string

	// Priority orders the chain; lower is tried first.
	Priority() int

	// CanHandle reports whether the adapter covers the hinted carrier.
	// Called only when a hint is supplied.
	CanHandle(carrierHint string) bool

	Track(ctx context.Context, trackingNumber, carrierHint string) (Payload, error)
}
