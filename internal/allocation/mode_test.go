package allocation

import (
	"testing"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDetectMode_TrackedFieldWins(t *testing.T) {
	require.Equal(t, models.TransportModeSea,
		DetectMode(models.Shipment{TransportMode: "sea", CarrierName: "FedEx Express"}))
	require.Equal(t, models.TransportModeAir,
		DetectMode(models.Shipment{TransportMode: "air", CarrierName: "Maersk"}))
}

func TestDetectMode_ManualSentinelFallsThrough(t *testing.T) {
	require.Equal(t, models.TransportModeSea,
		DetectMode(models.Shipment{TransportMode: "manual", CarrierName: "Maersk"}))
}

func TestDetectMode_CuratedCarrierLists(t *testing.T) {
	require.Equal(t, models.TransportModeSea, DetectMode(models.Shipment{CarrierName: "MSC Mediterranean Shipping"}))
	require.Equal(t, models.TransportModeSea, DetectMode(models.Shipment{CarrierName: "Hapag-Lloyd AG"}))
	require.Equal(t, models.TransportModeAir, DetectMode(models.Shipment{CarrierName: "FedEx Express"}))
	require.Equal(t, models.TransportModeAir, DetectMode(models.Shipment{CarrierName: "DHL Global Forwarding"}))
	require.Equal(t, models.TransportModeAir, DetectMode(models.Shipment{CarrierName: "Qatar Airways Cargo"}))
}

func TestDetectMode_GenericTokens(t *testing.T) {
	require.Equal(t, models.TransportModeAir, DetectMode(models.Shipment{CarrierName: "Speedy Air Freight Co"}))
	require.Equal(t, models.TransportModeAir, DetectMode(models.Shipment{CarrierName: "Acme Express"}))
	require.Equal(t, models.TransportModeSea, DetectMode(models.Shipment{CarrierName: "Pacific Shipping Co"}))
	require.Equal(t, models.TransportModeSea, DetectMode(models.Shipment{CarrierName: "Blue Star Line"}))
}

func TestDetectMode_DefaultManual(t *testing.T) {
	require.Equal(t, models.TransportModeManual, DetectMode(models.Shipment{}))
	require.Equal(t, models.TransportModeManual, DetectMode(models.Shipment{CarrierName: "Bob's Trucking"}))
}
