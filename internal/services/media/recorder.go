package media

import (
	"time"

	"norelock.dev/fetchx/backend/internal/models"
)

// Recorder receives provider-level measurements. The system metrics service
// implements it; the media package only depends on this interface.
type Recorder interface {
	// UpstreamRequest records one HTTP attempt. Status is zero on transport errors.
	UpstreamRequest(provider models.Source, status int, duration time.Duration)

	// KeyRotated records one credential rotation.
	KeyRotated(provider models.Source)

	// KeysExhausted records a call that ran out of credentials.
	KeysExhausted(provider models.Source)

	// AggregateFailure records a provider call dropped from an aggregate result.
	AggregateFailure(provider models.Source, subtype string, reason models.FailureReason)
}

type nopRecorder struct{}

func (nopRecorder) UpstreamRequest(models.Source, int, time.Duration)            {}
func (nopRecorder) KeyRotated(models.Source)                                     {}
func (nopRecorder) KeysExhausted(models.Source)                                  {}
func (nopRecorder) AggregateFailure(models.Source, string, models.FailureReason) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
