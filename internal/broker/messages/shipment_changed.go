package messages

// ShipmentChanged is emitted by collaborator services whenever a shipment's
// cost fields or product list change. Consuming it triggers a cost-allocation
// recompute; processing is idempotent, so redelivery is harmless.
type ShipmentChanged struct {
	ShipmentID     uint64 `json:"shipment_id"`
	OrganizationID uint64 `json:"organization_id"`
	// "costs" or "products"; informational only.
	Reason string `json:"reason,omitempty"`
}
