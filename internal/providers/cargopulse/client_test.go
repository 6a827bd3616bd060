package cargopulse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ShipCove/FreightTrack/internal/providers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Track_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/shipments/CSQU3054383", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "shipment": {
    "carrier": {"scac": "MSCU", "name": "MSC Mediterranean Shipping"},
    "latest_status": "DISCHARGED",
    "route": {"origin": "CNNGB", "destination": "USLAX", "eta": "2026-09-05T08:00:00Z"},
    "vessel": {"name": "MSC OSCAR", "voyage": "FA631A"},
    "milestones": [
      {"occurred_at":"2026-09-01T02:00:00Z","place":"Los Angeles","description":"Container discharged","code":"DISCHARGED"}
    ]
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", 0)
	p, err := c.Track(context.Background(), "CSQU3054383", "")
	require.NoError(t, err)
	require.Equal(t, "MSCU", p.CarrierCode)
	require.Equal(t, "DISCHARGED", p.Status)
	require.Equal(t, "USLAX", *p.DestinationPort)
	require.Len(t, p.Events, 1)
}

func TestClient_Track_ErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		code       int
		wantIs     error
		validation bool
	}{
		{http.StatusNotFound, providers.ErrNotFound, false},
		{http.StatusTooManyRequests, providers.ErrRateLimited, false},
		{http.StatusUnprocessableEntity, nil, true},
		{http.StatusInternalServerError, providers.ErrUnavailable, false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c := New(srv.URL, "k", 0)
		_, err := c.Track(context.Background(), "X1", "")
		require.Error(t, err)
		if tc.validation {
			_, ok := providers.AsValidation(err)
			require.True(t, ok, "http %d", tc.code)
		} else {
			require.True(t, errors.Is(err, tc.wantIs), "http %d", tc.code)
		}
		srv.Close()
	}
}

func TestClient_Priority(t *testing.T) {
	require.Equal(t, 3, New("", "", 0).Priority())
	require.True(t, New("", "", 0).CanHandle("anything"))
}
