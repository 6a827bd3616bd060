package messages

import "time"

// TrackingUpdated is published by the refresher after a successful provider
// refresh. The API instances consume it to re-prime the record cache.
type TrackingUpdated struct {
	OrganizationID uint64 `json:"organization_id"`
	TrackingNumber string `json:"tracking_number"`

	Status    string    `json:"status"`
	Provider  string    `json:"provider"`
	CheckedAt time.Time `json:"checked_at"`
}
