// Package normalize maps heterogeneous carrier status vocabularies into the
// canonical status set. Pure lookup, never errors: unknown input is data-quality
// noise, not a hard failure.
package normalize

import (
	"strings"

	"github.com/ShipCove/FreightTrack/internal/models"
)

var statusTable = map[string]string{
	// Canonical statuses map to themselves so normalization is idempotent.
	"REGISTERED": models.StatusRegistered,
	"BOOKED":     models.StatusBooked,
	"LOADED":     models.StatusLoaded,
	"IN_TRANSIT": models.StatusInTransit,
	"AT_PORT":    models.StatusAtPort,
	"ARRIVED":    models.StatusArrived,
	"DELIVERED":  models.StatusDelivered,
	"EXCEPTION":  models.StatusException,
	"DELAYED":    models.StatusDelayed,
	"CANCELLED":  models.StatusCancelled,

	// Pre-departure.
	"PENDING":           models.StatusRegistered,
	"INFO_RECEIVED":     models.StatusRegistered,
	"ORDER_CREATED":     models.StatusRegistered,
	"LABEL_CREATED":     models.StatusRegistered,
	"BOOKING_CONFIRMED": models.StatusBooked,
	"BOOKING":           models.StatusBooked,
	"EMPTY_PICKUP":      models.StatusBooked,

	// Loading.
	"GATE_IN":          models.StatusLoaded,
	"LOADED_ON_VESSEL": models.StatusLoaded,
	"VESSEL_LOADED":    models.StatusLoaded,
	"CONTAINER_LOADED": models.StatusLoaded,

	// Moving.
	"SAILING":          models.StatusInTransit,
	"IN TRANSIT":       models.StatusInTransit,
	"PICKED_UP":        models.StatusInTransit,
	"DEPARTED":         models.StatusInTransit,
	"VESSEL_DEPARTURE": models.StatusInTransit,
	"OUT_FOR_DELIVERY": models.StatusInTransit,

	// Port calls.
	"DISCHARGED":    models.StatusAtPort,
	"TRANSSHIPMENT": models.StatusAtPort,
	"AT_TERMINAL":   models.StatusAtPort,
	"CUSTOMS":       models.StatusAtPort,

	// Destination side.
	"VESSEL_ARRIVED": models.StatusArrived,
	"ARRIVED_AT_POD": models.StatusArrived,
	"POD_ARRIVAL":    models.StatusArrived,
	"GATE_OUT":       models.StatusArrived,

	// Done.
	"POD":            models.StatusDelivered,
	"EMPTY_RETURNED": models.StatusDelivered,

	// Trouble.
	"CUSTOMS_HOLD": models.StatusException,
	"HELD":         models.StatusException,
	"RETURNED":     models.StatusException,
	"DAMAGED":      models.StatusException,
	"ROLLOVER":     models.StatusDelayed,
	"ROLLED":       models.StatusDelayed,
	"LATE":         models.StatusDelayed,
	"CANCELED":     models.StatusCancelled,
	"VOID":         models.StatusCancelled,
}

// Status normalizes a raw provider status. Matching is case-insensitive;
// unrecognized values fall back to "registered".
func Status(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if s, ok := statusTable[key]; ok {
		return s
	}
	// Providers disagree on separators ("IN TRANSIT" vs "IN-TRANSIT").
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if s, ok := statusTable[key]; ok {
		return s
	}
	return models.StatusRegistered
}
