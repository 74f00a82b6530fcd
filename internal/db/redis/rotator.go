package redis

import (
	"context"
	"fmt"

	"norelock.dev/fetchx/backend/internal/services/media"
)

// CursorRotator keeps a provider's credentials in memory and its cursor in
// Redis, so every replica rotates through the same position.
type CursorRotator struct {
	client *Client
	key    string
	keys   []string
}

var _ media.Rotator = (*CursorRotator)(nil)

// NewCursorRotator creates a rotator whose cursor lives at <prefix>:<provider>.
func NewCursorRotator(client *Client, prefix, provider string, keys []string) (*CursorRotator, error) {
	if len(keys) == 0 {
		return nil, media.ErrNoCredentials
	}
	return &CursorRotator{
		client: client,
		key:    FormatKey(prefix, provider),
		keys:   append([]string(nil), keys...),
	}, nil
}

// Current implements media.Rotator.
func (r *CursorRotator) Current(ctx context.Context) (string, error) {
	cursor, err := r.client.GetInt64(ctx, r.key)
	if err != nil {
		return "", fmt.Errorf("read rotation cursor: %w", err)
	}
	return r.at(cursor), nil
}

// Rotate implements media.Rotator.
func (r *CursorRotator) Rotate(ctx context.Context) (string, error) {
	cursor, err := r.client.Incr(ctx, r.key)
	if err != nil {
		return "", fmt.Errorf("advance rotation cursor: %w", err)
	}
	return r.at(cursor), nil
}

// Len implements media.Rotator.
func (r *CursorRotator) Len() int {
	return len(r.keys)
}

func (r *CursorRotator) at(cursor int64) string {
	n := int64(len(r.keys))
	return r.keys[((cursor%n)+n)%n]
}
