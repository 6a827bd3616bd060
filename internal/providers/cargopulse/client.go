// Package cargopulse is the client for the CargoPulse paid aggregator.
// Best coverage in the chain and billed per lookup, which is why it sits last.
package cargopulse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL  string
	apiKey   string
	priority int
	httpc    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9003"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		priority: 3,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string  { return "cargopulse" }
func (c *Client) Priority() int { return c.priority }

func (c *Client) CanHandle(string) bool { return true }

type shipmentResp struct {
	Shipment struct {
		Carrier struct {
			SCAC string `json:"scac"`
			Name string `json:"name"`
		} `json:"carrier"`
		LatestStatus string `json:"latest_status"`
		Route        struct {
			Origin      string `json:"origin"`
			Destination string `json:"destination"`
			ETA         string `json:"eta"`
		} `json:"route"`
		Vessel struct {
			Name   string `json:"name"`
			Voyage string `json:"voyage"`
		} `json:"vessel"`
		Milestones []struct {
			OccurredAt  string `json:"occurred_at"`
			Place       string `json:"place"`
			Description string `json:"description"`
			Code        string `json:"code"`
		} `json:"milestones"`
	} `json:"shipment"`
}

func (c *Client) Track(ctx context.Context, trackingNumber, carrierHint string) (providers.Payload, error) {
	if trackingNumber == "" {
		return providers.Payload{}, providers.NewValidationError("tracking number is empty")
	}

	u := c.baseURL + "/v2/shipments/" + url.PathEscape(trackingNumber)
	if carrierHint != "" {
		u += "?carrier=" + url.QueryEscape(carrierHint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return providers.Payload{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return providers.Payload{}, errors.Wrap(providers.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return providers.Payload{}, providers.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return providers.Payload{}, providers.ErrRateLimited
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return providers.Payload{}, providers.NewValidationError("cargopulse rejected tracking number format")
	case resp.StatusCode/100 != 2:
		return providers.Payload{}, errors.Wrapf(providers.ErrUnavailable, "cargopulse http %d", resp.StatusCode)
	}

	var r shipmentResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return providers.Payload{}, errors.Wrap(providers.ErrUnavailable, "decode: "+err.Error())
	}

	return toPayload(r), nil
}

func toPayload(r shipmentResp) providers.Payload {
	s := r.Shipment
	p := providers.Payload{
		CarrierCode:     s.Carrier.SCAC,
		CarrierName:     s.Carrier.Name,
		Status:          s.LatestStatus,
		OriginPort:      strPtr(s.Route.Origin),
		DestinationPort: strPtr(s.Route.Destination),
		VesselName:      strPtr(s.Vessel.Name),
		VoyageNumber:    strPtr(s.Vessel.Voyage),
		Metadata: map[string]any{
			"source": "cargopulse",
			"status": s.LatestStatus,
		},
	}
	if t, err := time.Parse(time.RFC3339, s.Route.ETA); err == nil {
		tu := t.UTC()
		p.ETA = &tu
	}

	seen := map[string]struct{}{}
	for _, m := range s.Milestones {
		t, err := time.Parse(time.RFC3339, m.OccurredAt)
		if err != nil {
			continue
		}
		key := m.OccurredAt + "|" + m.Code + "|" + m.Place
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		p.Events = append(p.Events, providers.Event{
			Time:        t.UTC(),
			Location:    m.Place,
			Description: m.Description,
			RawStatus:   m.Code,
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
