package providers

import "github.com/pkg/errors"

// Soft failures: the orchestrator moves on to the next candidate.
var (
	// ErrNotFound: the carrier has no record of this tracking number.
	ErrNotFound = errors.New("tracking number not found at provider")
	// ErrRateLimited: provider quota exhausted for now.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrUnavailable: network error, timeout or provider outage.
	ErrUnavailable = errors.New("provider unavailable")
)

// ValidationError is fatal for the whole chain: a malformed tracking number
// will not become valid at the next provider.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid tracking number: " + e.Reason
}

func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// AsValidation unwraps err looking for a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
