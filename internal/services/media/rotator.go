package media

import (
	"context"
	"sync/atomic"
)

// Rotator owns one provider's credential set and its cursor. Implementations
// must be safe for concurrent use; the exact interleaving of concurrent
// rotations is not guaranteed.
type Rotator interface {
	// Current returns the credential at the cursor.
	Current(ctx context.Context) (string, error)

	// Rotate advances the cursor by one, wrapping around, and returns the
	// credential it now points at.
	Rotate(ctx context.Context) (string, error)

	// Len returns the number of credentials in the set.
	Len() int
}

// MemoryRotator keeps the cursor in process memory.
type MemoryRotator struct {
	keys   []string
	cursor atomic.Uint64
}

// NewMemoryRotator creates a rotator over keys. The slice is copied.
func NewMemoryRotator(keys []string) (*MemoryRotator, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return &MemoryRotator{keys: append([]string(nil), keys...)}, nil
}

// Current implements Rotator.
func (r *MemoryRotator) Current(context.Context) (string, error) {
	return r.keys[r.cursor.Load()%uint64(len(r.keys))], nil
}

// Rotate implements Rotator.
func (r *MemoryRotator) Rotate(context.Context) (string, error) {
	return r.keys[r.cursor.Add(1)%uint64(len(r.keys))], nil
}

// Len implements Rotator.
func (r *MemoryRotator) Len() int {
	return len(r.keys)
}
