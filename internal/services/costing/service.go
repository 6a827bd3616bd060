// Package costing recomputes per-product transport cost allocations for a
// shipment whenever its costs, products or transport mode change.
package costing

import (
	"context"
	"log/slog"

	"github.com/ShipCove/FreightTrack/internal/allocation"
	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/pkg/errors"
)

// Store is the persistence surface the costing service needs.
type Store interface {
	GetShipment(ctx context.Context, shipmentID uint64) (*models.Shipment, error)
	ListShipmentProducts(ctx context.Context, shipmentID uint64) ([]*models.ShipmentProduct, error)
	UpdateProductTransportCosts(ctx context.Context, productID uint64, unitCost, totalCost float64) error
}

type Service struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// Recompute loads a shipment with its products, runs the allocation and
// writes the per-product transport costs back. A missing shipment is a
// no-op; a shipment with nothing to allocate leaves costs untouched.
func (s *Service) Recompute(ctx context.Context, shipmentID uint64) error {
	sh, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return errors.Wrap(err, "load shipment")
	}
	if sh == nil {
		s.log.Warn("costing: shipment not found", "shipment_id", shipmentID)
		return nil
	}

	products, err := s.store.ListShipmentProducts(ctx, shipmentID)
	if err != nil {
		return errors.Wrap(err, "load shipment products")
	}

	res := allocation.Allocate(*sh, products)
	if res.Method == allocation.MethodNone {
		s.log.Info("costing: nothing to allocate",
			"shipment_id", shipmentID, "mode", allocation.DetectMode(*sh))
		return nil
	}

	for _, p := range products {
		total := res.Allocated[p.ID]
		unit := 0.0
		if p.Quantity > 0 {
			unit = total / p.Quantity
		}
		if err := s.store.UpdateProductTransportCosts(ctx, p.ID, unit, total); err != nil {
			return errors.Wrapf(err, "write transport costs for product %d", p.ID)
		}
	}

	s.log.Info("costing: shipment reallocated",
		"shipment_id", shipmentID,
		"mode", allocation.DetectMode(*sh),
		"method", res.Method,
		"total_basis", res.TotalBasis,
		"products", len(products))
	return nil
}
