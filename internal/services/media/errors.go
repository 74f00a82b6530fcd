package media

import (
	"context"
	"errors"
	"fmt"

	"norelock.dev/fetchx/backend/internal/models"
)

var (
	// ErrNoCredentials is returned when a rotator is built from an empty key list.
	ErrNoCredentials = errors.New("credential set is empty")

	// ErrCredentialsExhausted is returned once every credential of a provider
	// has been rejected within one call.
	ErrCredentialsExhausted = errors.New("all credentials exhausted")

	// ErrMalformedItem is returned when a provider record lacks a field the
	// canonical item cannot do without.
	ErrMalformedItem = errors.New("malformed provider item")

	// ErrUnsupportedSubtype is returned when a provider has no endpoint for a subtype.
	ErrUnsupportedSubtype = errors.New("unsupported subtype")

	// ErrEmptyQuery is returned when an aggregate operation gets a blank query.
	ErrEmptyQuery = errors.New("query is required")

	// ErrUnknownMediaType is returned when an aggregate operation gets a media
	// type other than images or videos.
	ErrUnknownMediaType = errors.New("unknown media type")
)

// UpstreamError is a provider failure that rotation cannot fix: a
// non-retryable status, a transport error or an undecodable body.
type UpstreamError struct {
	Provider models.Source
	// Status is zero for transport failures.
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: upstream status %d: %v", e.Provider, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.Status)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// failureReason maps a provider-call error onto the public failure taxonomy.
func failureReason(err error) models.FailureReason {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ReasonCanceled
	case errors.Is(err, ErrCredentialsExhausted):
		return models.ReasonExhausted
	case errors.Is(err, ErrMalformedItem):
		return models.ReasonNormalization
	default:
		return models.ReasonUpstream
	}
}
