package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client idempotency keys so a retried create
// request does not produce a second record.
type IdempotencyStore interface {
	// Reserve claims key for ttl. It returns false when the key is already
	// claimed, together with the result stored by Complete (if any).
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, string, error)

	// Complete stores the result of the operation under key.
	Complete(ctx context.Context, key, result string, ttl time.Duration) error

	// Release drops a reservation whose operation failed.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a key is remembered. Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
