package orchestrator

import "github.com/ShipCove/FreightTrack/internal/models"

// FailureKind classifies a resolve failure. Kinds are ordered by specificity:
// a confirmed "no such shipment anywhere" beats a transient outage when
// summarizing a whole failed chain.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureValidation  FailureKind = "validation"
	FailureNotFound    FailureKind = "not_found"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
)

func specificity(k FailureKind) int {
	switch k {
	case FailureValidation:
		return 4
	case FailureNotFound:
		return 3
	case FailureRateLimited:
		return 2
	case FailureUnavailable:
		return 1
	default:
		return 0
	}
}

// Retryable reports whether the caller may usefully try again later.
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureUnavailable
}

type Meta struct {
	Provider       string `json:"provider"`
	FallbackUsed   bool   `json:"fallback_used"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Cached         bool   `json:"cached"`
}

// TrackResult is the uniform shape every caller branches on. Provider-level
// failures never escape as Go errors; only store failures do.
type TrackResult struct {
	Success bool
	Record  *models.TrackingRecord
	Meta    Meta

	Failure FailureKind
	Err     string
}

func failure(kind FailureKind, msg string) *TrackResult {
	return &TrackResult{Failure: kind, Err: msg}
}

// CheckItem is one entry of a batch existence check.
type CheckItem struct {
	TrackingNumber string
	Exists         bool
	Record         *models.TrackingRecord
}

type CheckReport struct {
	Items           []CheckItem
	Total           int
	Found           int
	NotFound        int
	FoundPercentage float64
}
