// Package fake is a deterministic in-process provider for dev environments
// where no real tracking source is configured.
package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/ShipCove/FreightTrack/internal/providers"
)

// Client produces a stable status per tracking number: a fifth of all numbers
// come back delivered, the rest in transit.
type Client struct{}

func New() *Client { return &Client{} }

func (c *Client) Name() string          { return "fake" }
func (c *Client) Priority() int         { return 100 }
func (c *Client) CanHandle(string) bool { return true }

func (c *Client) Track(ctx context.Context, trackingNumber, carrierHint string) (providers.Payload, error) {
	if trackingNumber == "" {
		return providers.Payload{}, providers.NewValidationError("tracking number is empty")
	}

	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(carrierHint))
	v := h.Sum32()

	status := "IN_TRANSIT"
	if v%5 == 0 {
		status = "DELIVERED"
	}

	return providers.Payload{
		CarrierCode: "FAKE",
		CarrierName: "Fake Carrier",
		Status:      status,
		Events: []providers.Event{{
			Time:        now,
			Location:    "Nowhere",
			Description: "fake provider update",
			RawStatus:   status,
		}},
		Metadata: map[string]any{"source": "fake"},
	}, nil
}
