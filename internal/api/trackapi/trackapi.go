// Package trackapi exposes the tracking orchestrator over HTTP JSON.
// Organization scope comes from the X-Org-ID header; authentication itself
// terminates upstream.
package trackapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ShipCove/FreightTrack/internal/models"
	"github.com/ShipCove/FreightTrack/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// TrackingService is the orchestrator surface the API calls into.
type TrackingService interface {
	Resolve(ctx context.Context, p orchestrator.Principal, req orchestrator.ResolveRequest) (*orchestrator.TrackResult, error)
	CheckExisting(ctx context.Context, p orchestrator.Principal, trackingNumbers []string) (*orchestrator.CheckReport, error)
	Events(ctx context.Context, p orchestrator.Principal, trackingNumber string, limit, offset int) ([]*models.TrackingEvent, error)
}

type API struct {
	svc TrackingService
}

func New(svc TrackingService) *API {
	return &API{svc: svc}
}

func (a *API) Routes(r chi.Router) {
	r.Post("/track", a.handleTrack)
	r.Post("/check", a.handleCheck)
	r.Get("/trackings/{trackingNumber}/events", a.handleEvents)
}

type trackRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	ForceRefresh   bool   `json:"force_refresh,omitempty"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type trackResponse struct {
	Success bool               `json:"success"`
	Data    *recordBody        `json:"data,omitempty"`
	Meta    *orchestrator.Meta `json:"meta,omitempty"`
	Error   *errorBody         `json:"error,omitempty"`
}

type recordBody struct {
	TrackingNumber string       `json:"tracking_number"`
	Status         string       `json:"status"`
	Carrier        string       `json:"carrier"`
	CarrierCode    string       `json:"carrier_code,omitempty"`
	Origin         *string      `json:"origin,omitempty"`
	Destination    *string      `json:"destination,omitempty"`
	ETA            *string      `json:"eta,omitempty"`
	Vessel         *string      `json:"vessel,omitempty"`
	Voyage         *string      `json:"voyage,omitempty"`
	UpdatedAt      string       `json:"updated_at"`
	Events         []eventBody  `json:"events"`
}

type eventBody struct {
	Time        string  `json:"time"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	RawStatus   string  `json:"raw_status"`
}

func toRecordBody(rec *models.TrackingRecord) *recordBody {
	if rec == nil {
		return nil
	}
	body := &recordBody{
		TrackingNumber: rec.TrackingNumber,
		Status:         rec.Status,
		Carrier:        rec.CarrierName,
		CarrierCode:    rec.CarrierCode,
		Origin:         rec.OriginPort,
		Destination:    rec.DestinationPort,
		Vessel:         rec.VesselName,
		Voyage:         rec.VoyageNumber,
		UpdatedAt:      rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Events:         []eventBody{},
	}
	if rec.ETA != nil {
		s := rec.ETA.UTC().Format("2006-01-02T15:04:05Z07:00")
		body.ETA = &s
	}
	for _, e := range rec.Events {
		body.Events = append(body.Events, eventBody{
			Time:        e.EventTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Location:    e.Location,
			Description: e.Description,
			RawStatus:   e.RawStatus,
		})
	}
	return body
}

func principalFrom(r *http.Request) (orchestrator.Principal, bool) {
	raw := r.Header.Get("X-Org-ID")
	orgID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || orgID == 0 {
		return orchestrator.Principal{}, false
	}
	return orchestrator.Principal{OrganizationID: orgID}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func failureStatus(kind orchestrator.FailureKind) int {
	switch kind {
	case orchestrator.FailureValidation:
		return http.StatusBadRequest
	case orchestrator.FailureNotFound:
		return http.StatusNotFound
	case orchestrator.FailureRateLimited, orchestrator.FailureUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, kind orchestrator.FailureKind, message string) {
	writeJSON(w, failureStatus(kind), trackResponse{
		Success: false,
		Error: &errorBody{
			Kind:      string(kind),
			Message:   message,
			Retryable: kind.Retryable(),
		},
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeFailure(w, orchestrator.FailureValidation, message)
}

func (a *API) handleTrack(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-Org-ID header")
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := a.svc.Resolve(r.Context(), p, orchestrator.ResolveRequest{
		TrackingNumber: req.TrackingNumber,
		CarrierHint:    req.Carrier,
		ForceRefresh:   req.ForceRefresh,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, trackResponse{
			Success: false,
			Error:   &errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	if !res.Success {
		msg := res.Err
		switch res.Failure {
		case orchestrator.FailureNotFound:
			msg = "tracking information not found for this shipment"
		case orchestrator.FailureRateLimited, orchestrator.FailureUnavailable:
			msg = "tracking information is temporarily unavailable, try again later"
		}
		writeJSON(w, failureStatus(res.Failure), trackResponse{
			Success: false,
			Meta:    &res.Meta,
			Error: &errorBody{
				Kind:      string(res.Failure),
				Message:   msg,
				Retryable: res.Failure.Retryable(),
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{
		Success: true,
		Data:    toRecordBody(res.Record),
		Meta:    &res.Meta,
	})
}

type checkRequest struct {
	TrackingNumbers []string `json:"tracking_numbers"`
}

type checkItemBody struct {
	TrackingNumber string  `json:"tracking_number"`
	Exists         bool    `json:"exists"`
	Status         *string `json:"status,omitempty"`
}

type checkResponse struct {
	Success         bool            `json:"success"`
	Items           []checkItemBody `json:"items"`
	Total           int             `json:"total"`
	Found           int             `json:"found"`
	NotFound        int             `json:"not_found"`
	FoundPercentage float64         `json:"found_percentage"`
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-Org-ID header")
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.TrackingNumbers) == 0 {
		writeBadRequest(w, "tracking_numbers is required")
		return
	}

	report, err := a.svc.CheckExisting(r.Context(), p, req.TrackingNumbers)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, trackResponse{
			Success: false,
			Error:   &errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	resp := checkResponse{
		Success:         true,
		Items:           []checkItemBody{},
		Total:           report.Total,
		Found:           report.Found,
		NotFound:        report.NotFound,
		FoundPercentage: report.FoundPercentage,
	}
	for _, it := range report.Items {
		item := checkItemBody{TrackingNumber: it.TrackingNumber, Exists: it.Exists}
		if it.Record != nil {
			s := it.Record.Status
			item.Status = &s
		}
		resp.Items = append(resp.Items, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type eventsResponse struct {
	Success bool        `json:"success"`
	Events  []eventBody `json:"events"`
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeBadRequest(w, "missing or invalid X-Org-ID header")
		return
	}

	trackingNumber := chi.URLParam(r, "trackingNumber")
	if trackingNumber == "" {
		writeBadRequest(w, "trackingNumber is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	evs, err := a.svc.Events(r.Context(), p, trackingNumber, limit, offset)
	if errors.Is(err, orchestrator.ErrRecordNotFound) {
		writeFailure(w, orchestrator.FailureNotFound, "no tracking record for this number")
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, trackResponse{
			Success: false,
			Error:   &errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	resp := eventsResponse{Success: true, Events: []eventBody{}}
	for _, e := range evs {
		resp.Events = append(resp.Events, eventBody{
			Time:        e.EventTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Location:    e.Location,
			Description: e.Description,
			RawStatus:   e.RawStatus,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
