package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

const defaultUpstreamTimeout = 10 * time.Second

// credentialFunc places a credential on an outgoing request.
type credentialFunc func(req *resty.Request, key string)

// keyedClient issues GET requests against one provider, rotating through the
// provider's credentials whenever the retry policy says the key is spent.
type keyedClient struct {
	provider models.Source
	http     *resty.Client
	rotator  Rotator
	policy   RetryPolicy
	apply    credentialFunc
	recorder Recorder
	logger   *utils.Logger
}

func newKeyedClient(provider models.Source, baseURL string, rotator Rotator, apply credentialFunc, opts ProviderOptions, logger *utils.Logger) *keyedClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &keyedClient{
		provider: provider,
		http:     httpClient,
		rotator:  rotator,
		policy:   opts.policyFor(provider),
		apply:    apply,
		recorder: recorderOrNop(opts.Recorder),
		logger:   logger,
	}
}

// get performs the request and decodes a 2xx body into out.
func (c *keyedClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	attempts := c.policy.attempts(c.rotator.Len())

	for attempt := 1; attempt <= attempts; attempt++ {
		key, err := c.rotator.Current(ctx)
		if err != nil {
			return fmt.Errorf("%s: read credential: %w", c.provider, err)
		}

		req := c.http.R().
			SetContext(ctx).
			SetQueryParams(params)
		c.apply(req, key)

		start := time.Now()
		resp, err := req.Get(path)
		if err != nil {
			c.recorder.UpstreamRequest(c.provider, 0, time.Since(start))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			err = redactURL(path, err)
			c.logger.Warn("Upstream request failed", "path", path, "error", err.Error())
			return &UpstreamError{Provider: c.provider, Err: err}
		}

		status := resp.StatusCode()
		c.recorder.UpstreamRequest(c.provider, status, resp.Time())

		if c.policy.retryable(status) {
			c.logger.Warn("Credential rejected, rotating", "status", status, "attempt", attempt, "maxAttempts", attempts)
			c.recorder.KeyRotated(c.provider)
			if _, err := c.rotator.Rotate(ctx); err != nil {
				return fmt.Errorf("%s: rotate credential: %w", c.provider, err)
			}
			continue
		}

		if status < 200 || status > 299 {
			c.logger.Debug("Upstream returned error status", "path", path, "status", status)
			return &UpstreamError{Provider: c.provider, Status: status}
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &UpstreamError{Provider: c.provider, Status: status, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	c.recorder.KeysExhausted(c.provider)
	c.logger.Error("All credentials exhausted", nil, "attempts", attempts)
	return fmt.Errorf("%s: %w", c.provider, ErrCredentialsExhausted)
}

// redactURL drops the request URL from transport errors. Pixabay carries the
// credential in the query string.
func redactURL(path string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s %s: %w", urlErr.Op, path, urlErr.Err)
	}
	return err
}
