// Package trackmile is the client for the TrackMile aggregator (mid-tier,
// metered free plan). General purpose: it resolves the carrier itself.
package trackmile

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL  string
	apiKey   string
	priority int
	httpc    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9002"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		priority: 2,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string  { return "trackmile" }
func (c *Client) Priority() int { return c.priority }

// TrackMile is an aggregator; any carrier hint is acceptable.
func (c *Client) CanHandle(string) bool { return true }

type queryReq struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
}

type queryResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		CarrierCode string  `json:"carrier_code"`
		CarrierName string  `json:"carrier_name"`
		Status      string  `json:"status"`
		PortOfLoad  string  `json:"port_of_load"`
		PortOfDisch string  `json:"port_of_discharge"`
		ETA         string  `json:"eta"`
		Vessel      string  `json:"vessel"`
		Voyage      string  `json:"voyage"`
		// Historical field names from the aggregator; translated here, never
		// propagated under these names (see canonical total_* keys below).
		WeightKG  float64 `json:"weight_kg"`
		VolumeCBM float64 `json:"volume_cbm"`
		Checkpoints []struct {
			Ts       string `json:"ts"`
			Location string `json:"location"`
			Detail   string `json:"detail"`
			Tag      string `json:"tag"`
		} `json:"checkpoints"`
	} `json:"data"`
}

func (c *Client) Track(ctx context.Context, trackingNumber, carrierHint string) (providers.Payload, error) {
	if trackingNumber == "" {
		return providers.Payload{}, providers.NewValidationError("tracking number is empty")
	}

	body, err := json.Marshal(queryReq{TrackingNumber: trackingNumber, Carrier: carrierHint})
	if err != nil {
		return providers.Payload{}, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/trackings/query", bytes.NewReader(body))
	if err != nil {
		return providers.Payload{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Trackmile-Api-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return providers.Payload{}, errors.Wrap(providers.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return providers.Payload{}, providers.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return providers.Payload{}, errors.Wrapf(providers.ErrUnavailable, "trackmile http %d", resp.StatusCode)
	}

	var r queryResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return providers.Payload{}, errors.Wrap(providers.ErrUnavailable, "decode: "+err.Error())
	}

	// TrackMile signals everything with 200 + application codes.
	switch r.Code {
	case 200:
	case 4004:
		return providers.Payload{}, providers.ErrNotFound
	case 4029:
		return providers.Payload{}, providers.ErrRateLimited
	case 4001:
		return providers.Payload{}, providers.NewValidationError(r.Msg)
	default:
		return providers.Payload{}, errors.Wrapf(providers.ErrUnavailable, "trackmile code %d: %s", r.Code, r.Msg)
	}

	return toPayload(r), nil
}

func toPayload(r queryResp) providers.Payload {
	d := r.Data
	p := providers.Payload{
		CarrierCode:     d.CarrierCode,
		CarrierName:     d.CarrierName,
		Status:          d.Status,
		OriginPort:      strPtr(d.PortOfLoad),
		DestinationPort: strPtr(d.PortOfDisch),
		VesselName:      strPtr(d.Vessel),
		VoyageNumber:    strPtr(d.Voyage),
		Metadata: map[string]any{
			"source": "trackmile",
			"status": d.Status,
		},
	}
	if t, err := time.Parse(time.RFC3339, d.ETA); err == nil {
		tu := t.UTC()
		p.ETA = &tu
	}
	// Canonical dimension field names only; the aggregator's weight_kg /
	// volume_cbm never leave this package.
	if d.WeightKG > 0 {
		p.Metadata["total_weight_kg"] = d.WeightKG
	}
	if d.VolumeCBM > 0 {
		p.Metadata["total_volume_cbm"] = d.VolumeCBM
	}

	seen := map[string]struct{}{}
	for _, cp := range d.Checkpoints {
		t, err := time.Parse(time.RFC3339, cp.Ts)
		if err != nil {
			continue
		}
		key := cp.Ts + "|" + cp.Tag + "|" + cp.Location
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		p.Events = append(p.Events, providers.Event{
			Time:        t.UTC(),
			Location:    cp.Location,
			Description: cp.Detail,
			RawStatus:   cp.Tag,
		})
	}
	return p
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
