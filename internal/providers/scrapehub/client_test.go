package scrapehub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Track_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scrape", r.URL.Path)
		require.Equal(t, "CSQU3054383", r.URL.Query().Get("number"))
		require.Equal(t, "Maersk", r.URL.Query().Get("carrier"))
		require.Equal(t, "demo", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "ok": true,
  "carrier": {"code": "MAEU", "name": "Maersk"},
  "status": "VESSEL_DEPARTURE",
  "origin": "CNSHA",
  "destination": "NLRTM",
  "eta": "2026-09-18T00:00:00Z",
  "vessel": "MAERSK ESSEX",
  "voyage": "129W",
  "events": [
    {"time":"2026-08-20T10:00:00Z","location":"Shanghai","description":"Loaded on vessel","status":"LOADED_ON_VESSEL"},
    {"time":"2026-08-20T10:00:00Z","location":"Shanghai","description":"Loaded on vessel","status":"LOADED_ON_VESSEL"},
    {"time":"2026-08-21T04:00:00Z","location":"Shanghai","description":"Vessel departed","status":"VESSEL_DEPARTURE"}
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", 0)
	p, err := c.Track(context.Background(), "CSQU3054383", "Maersk")
	require.NoError(t, err)
	require.Equal(t, "MAEU", p.CarrierCode)
	require.Equal(t, "VESSEL_DEPARTURE", p.Status)
	require.Equal(t, "CNSHA", *p.OriginPort)
	require.Equal(t, "MAERSK ESSEX", *p.VesselName)
	require.NotNil(t, p.ETA)
	// duplicated scrape row dropped
	require.Len(t, p.Events, 2)
	require.WithinDuration(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), p.Events[0].Time, time.Second)
}

func TestClient_Track_BadCheckDigitFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.Track(context.Background(), "CSQU3054380", "")
	require.Error(t, err)
	_, ok := providers.AsValidation(err)
	require.True(t, ok)
	require.False(t, called, "no network call on validation failure")
}

func TestClient_Track_ErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		code int
		want error
	}{
		{http.StatusNotFound, providers.ErrNotFound},
		{http.StatusTooManyRequests, providers.ErrRateLimited},
		{http.StatusBadGateway, providers.ErrUnavailable},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c := New(srv.URL, "", 0)
		_, err := c.Track(context.Background(), "CSQU3054383", "")
		require.True(t, errors.Is(err, tc.want), "http %d", tc.code)
		srv.Close()
	}
}

func TestClient_CanHandle(t *testing.T) {
	c := New("", "", 0)
	require.True(t, c.CanHandle("MSC Mediterranean Shipping"))
	require.True(t, c.CanHandle("Hapag-Lloyd AG"))
	require.True(t, c.CanHandle("")) // no hint: orchestrator decides
	require.False(t, c.CanHandle("FedEx Express"))
	require.False(t, c.CanHandle("DHL Global Forwarding"))
}
