package pgstore

import (
	"context"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetShipment(ctx context.Context, shipmentID uint64) (*models.Shipment, error) {
	var sh models.Shipment
	err := s.db.QueryRow(ctx, `
SELECT id, organization_id, tracking_number, carrier_name, transport_mode,
       freight_cost, other_costs, created_at, updated_at
FROM shipments
WHERE id = $1
`, shipmentID).Scan(
		&sh.ID, &sh.OrganizationID, &sh.TrackingNumber, &sh.CarrierName, &sh.TransportMode,
		&sh.FreightCost, &sh.OtherCosts, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return &sh, nil
}

func (s *Storage) ListShipmentProducts(ctx context.Context, shipmentID uint64) ([]*models.ShipmentProduct, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, quantity, total_weight_kg, total_volume_cbm,
       transport_unit_cost, transport_total_cost
FROM shipment_products
WHERE shipment_id = $1
ORDER BY id ASC
`, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipment products")
	}
	defer rows.Close()

	out := []*models.ShipmentProduct{}
	for rows.Next() {
		var p models.ShipmentProduct
		if err := rows.Scan(
			&p.ID, &p.ShipmentID, &p.Quantity, &p.TotalWeightKG, &p.TotalVolumeCBM,
			&p.TransportUnitCost, &p.TransportTotalCost,
		); err != nil {
			return nil, errors.Wrap(err, "scan shipment product")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) UpdateProductTransportCosts(ctx context.Context, productID uint64, unitCost, totalCost float64) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipment_products
SET transport_unit_cost = $2, transport_total_cost = $3
WHERE id = $1
`, productID, unitCost, totalCost)
	return errors.Wrap(err, "update product transport costs")
}
