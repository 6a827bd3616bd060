package allocation

import (
	"strings"

	"github.com/ShipCove/FreightTrack/internal/models"
)

// Best-effort carrier classification. Wrong guesses degrade to a less precise
// allocation basis, never to a failure.
var airCarrierTokens = []string{
	"fedex", "dhl", "ups", "tnt", "aramex",
	"emirates", "qatar airways", "korean air", "cargolux", "lufthansa",
	"atlas air", "china airlines cargo",
}

var seaCarrierTokens = []string{
	"maersk", "msc", "mediterranean shipping", "cma cgm", "cosco", "hapag",
	"evergreen", "ocean network express", "yang ming", "hmm", "zim", "wan hai",
}

// DetectMode classifies a shipment as sea, air or manual.
// Precedence: tracked transport_mode field, curated carrier lists (air first),
// generic name tokens, manual.
func DetectMode(sh models.Shipment) string {
	if sh.TransportMode != "" && sh.TransportMode != models.TransportModeManual {
		return sh.TransportMode
	}

	name := strings.ToLower(strings.TrimSpace(sh.CarrierName))
	if name == "" {
		return models.TransportModeManual
	}

	for _, token := range airCarrierTokens {
		if strings.Contains(name, token) {
			return models.TransportModeAir
		}
	}
	for _, token := range seaCarrierTokens {
		if strings.Contains(name, token) {
			return models.TransportModeSea
		}
	}

	for _, token := range []string{"air", "cargo", "express"} {
		if strings.Contains(name, token) {
			return models.TransportModeAir
		}
	}
	for _, token := range []string{"line", "shipping", "maritime"} {
		if strings.Contains(name, token) {
			return models.TransportModeSea
		}
	}

	return models.TransportModeManual
}
