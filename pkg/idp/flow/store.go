package flow

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a ContinuationStore when no live entry
// exists under the requested id. Entries past their ttl behave exactly
// like absent ones.
var ErrNotFound = errors.New("continuation not found")

// ContinuationStore is durable, TTL bounded key to bytes storage. A Put
// must be visible to any later Get of the same id, regardless of which
// process or worker handles the request performing the Get. Overwriting
// an existing id is allowed, it re-saves an in-flight continuation.
//
// Storage failures are infrastructure errors, not protocol errors, and
// are surfaced as-is.
type ContinuationStore interface {
	Put(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
