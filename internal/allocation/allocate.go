// Package allocation distributes a shipment's aggregate transport cost across
// its line items. Pure computation: no I/O, never errors; missing data degrades
// the allocation method instead of blocking the workflow.
package allocation

import (
	"github.com/ShipCove/FreightTrack/internal/models"
)

type Method string

const (
	MethodNone            Method = "none"
	MethodVolume          Method = "volume"
	MethodWeight          Method = "weight"
	MethodWeightVolumeMax Method = "weight_volume_max"
	MethodEqual           Method = "equal"
	MethodEqualFallback   Method = "equal_fallback"
)

// Air-freight volumetric weight constant, kg per CBM.
const VolumetricKGPerCBM = 167.0

type Result struct {
	Method     Method
	UnitCost   float64
	TotalBasis float64
	// Allocated cost per product ID.
	Allocated map[uint64]float64
}

// Allocate splits freight_cost+other_costs across products using a basis chosen
// by transport mode. The per-product share for weight_volume_max uses each
// product's own chargeable weight max(w, v*167), so shares may not sum exactly
// to the aggregate basis; that matches how air carriers bill per item.
func Allocate(sh models.Shipment, products []*models.ShipmentProduct) Result {
	total := sh.FreightCost + sh.OtherCosts
	if total == 0 || len(products) == 0 {
		return Result{Method: MethodNone, Allocated: map[uint64]float64{}}
	}

	method, basis := chooseBasis(DetectMode(sh), products)

	totalBasis := 0.0
	switch method {
	case MethodWeightVolumeMax:
		// Shipment-level max, chosen once, the way the airline bills.
		sumW, sumV := 0.0, 0.0
		for _, p := range products {
			sumW += p.TotalWeightKG
			sumV += p.TotalVolumeCBM
		}
		totalBasis = sumW
		if v := sumV * VolumetricKGPerCBM; v > totalBasis {
			totalBasis = v
		}
	default:
		for _, p := range products {
			totalBasis += basis(p)
		}
	}

	// Costs exist but no product carries the needed dimension: split evenly
	// instead of dividing by zero or silently skipping.
	if totalBasis == 0 {
		method = MethodEqualFallback
		basis = func(*models.ShipmentProduct) float64 { return 1 }
		totalBasis = float64(len(products))
	}

	unitCost := total / totalBasis
	allocated := make(map[uint64]float64, len(products))
	for _, p := range products {
		allocated[p.ID] = unitCost * basis(p)
	}

	return Result{
		Method:     method,
		UnitCost:   unitCost,
		TotalBasis: totalBasis,
		Allocated:  allocated,
	}
}

func chooseBasis(mode string, products []*models.ShipmentProduct) (Method, func(*models.ShipmentProduct) float64) {
	volumeOf := func(p *models.ShipmentProduct) float64 { return p.TotalVolumeCBM }
	weightOf := func(p *models.ShipmentProduct) float64 { return p.TotalWeightKG }
	oneOf := func(*models.ShipmentProduct) float64 { return 1 }

	switch mode {
	case models.TransportModeSea:
		// Sea freight bills by volume; weight is ignored entirely.
		return MethodVolume, volumeOf

	case models.TransportModeAir:
		return MethodWeightVolumeMax, func(p *models.ShipmentProduct) float64 {
			b := p.TotalWeightKG
			if v := p.TotalVolumeCBM * VolumetricKGPerCBM; v > b {
				b = v
			}
			return b
		}

	default: // manual / road: volume preferred, then weight, then head count
		for _, p := range products {
			if p.TotalVolumeCBM > 0 {
				return MethodVolume, volumeOf
			}
		}
		for _, p := range products {
			if p.TotalWeightKG > 0 {
				return MethodWeight, weightOf
			}
		}
		return MethodEqual, oneOf
	}
}
