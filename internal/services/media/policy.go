package media

import (
	"net/http"
	"time"

	"github.com/samber/lo"
	"norelock.dev/fetchx/backend/internal/models"
)

// RetryPolicy decides which upstream statuses trigger a credential rotation
// and how many attempts one call may make.
type RetryPolicy struct {
	// Retryable lists the statuses answered by rotating to the next credential.
	Retryable []int
	// MaxAttempts bounds the attempts of one call. Zero means one attempt
	// per credential.
	MaxAttempts int
}

// DefaultRetryPolicy returns the rotation policy matching each provider's
// quota and auth conventions.
func DefaultRetryPolicy(source models.Source) RetryPolicy {
	switch source {
	case models.SourcePexels:
		return RetryPolicy{Retryable: []int{http.StatusTooManyRequests}}
	default:
		return RetryPolicy{Retryable: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusTooManyRequests,
		}}
	}
}

func (p RetryPolicy) retryable(status int) bool {
	return lo.Contains(p.Retryable, status)
}

func (p RetryPolicy) attempts(credentials int) int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return max(credentials, 1)
}

// ProviderOptions configures a provider adapter.
type ProviderOptions struct {
	// BaseURL overrides the provider's public API root.
	BaseURL string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// Policy overrides DefaultRetryPolicy when Retryable is non-empty.
	Policy RetryPolicy
	// Recorder receives upstream metrics. Nil disables recording.
	Recorder Recorder
}

func (o ProviderOptions) policyFor(source models.Source) RetryPolicy {
	if len(o.Policy.Retryable) > 0 {
		return o.Policy
	}
	policy := DefaultRetryPolicy(source)
	policy.MaxAttempts = o.Policy.MaxAttempts
	return policy
}
