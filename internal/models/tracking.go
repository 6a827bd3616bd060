package models

import "time"

// Canonical tracking statuses. Every provider vocabulary normalizes into this set.
const (
	StatusRegistered = "registered"
	StatusBooked     = "booked"
	StatusLoaded     = "loaded"
	StatusInTransit  = "in_transit"
	StatusAtPort     = "at_port"
	StatusArrived    = "arrived"
	StatusDelivered  = "delivered"
	StatusException  = "exception"
	StatusDelayed    = "delayed"
	StatusCancelled  = "cancelled"
)

// IsTerminalStatus reports whether a record in this status is never refreshed again.
func IsTerminalStatus(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

type TrackingRecord struct {
	ID             uint64
	OrganizationID uint64
	TrackingNumber string

	Status      string
	CarrierCode string
	CarrierName string

	OriginPort      *string
	DestinationPort *string
	ETA             *time.Time
	VesselName      *string
	VoyageNumber    *string

	Events []*TrackingEvent

	// Raw provider payload kept for audit/debugging. Opaque to the orchestrator;
	// only the adapter that produced it may interpret it.
	Metadata map[string]any

	CheckFailCount int32
	LastError      *string
	NextCheckAt    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TrackingEvent struct {
	ID       uint64
	RecordID uint64

	EventTime   time.Time
	Location    *string
	Description *string
	RawStatus   string

	CreatedAt time.Time
}
