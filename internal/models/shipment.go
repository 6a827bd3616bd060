package models

import "time"

// Transport modes driving the cost-allocation basis.
const (
	TransportModeSea    = "sea"
	TransportModeAir    = "air"
	TransportModeManual = "manual"
)

// Shipment is the collaborator-owned view the cost-allocation engine consumes.
type Shipment struct {
	ID             uint64
	OrganizationID uint64
	TrackingNumber string

	CarrierName   string
	TransportMode string // "", "sea", "air" or "manual"

	FreightCost float64
	OtherCosts  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShipmentProduct is a shipment line item. The allocation engine only ever writes
// the two transport cost fields; quantity/weight/volume belong to the shipment.
type ShipmentProduct struct {
	ID         uint64
	ShipmentID uint64

	Quantity       float64
	TotalWeightKG  float64
	TotalVolumeCBM float64

	TransportUnitCost  float64
	TransportTotalCost float64
}
