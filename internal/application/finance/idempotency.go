package finance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// MaxIdempotencyKeyLength bounds client supplied keys
const MaxIdempotencyKeyLength = 128

// Idempotency replays the stored result of a create request retried with the
// same key. A nil *Idempotency runs every request.
type Idempotency struct {
	store shared.IdempotencyStore
	cfg   shared.IdempotencyConfig
}

// NewIdempotency creates an idempotency guard over store
func NewIdempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) *Idempotency {
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &Idempotency{store: store, cfg: cfg}
}

func (i *Idempotency) enabled() bool {
	return i != nil && i.store != nil && i.cfg.Enabled
}

// Once runs fn at most once per tenant, scope and key. A retry after success
// returns the stored result with replayed set; a retry while the first call
// is still running is rejected. Failed calls release the key.
func Once[R any](ctx context.Context, idem *Idempotency, tc shared.TenantContext, scope, key string, fn func() (*R, error)) (result *R, replayed bool, err error) {
	if key == "" || !idem.enabled() {
		result, err = fn()
		return result, false, err
	}
	if len(key) > MaxIdempotencyKeyLength {
		return nil, false, shared.Validation(shared.EntityNone, fmt.Sprintf("idempotency key must be at most %d characters", MaxIdempotencyKeyLength)).
			WithDetail("field", "Idempotency-Key")
	}
	if err := tc.Validate(); err != nil {
		return nil, false, err
	}
	storeKey := tc.TenantID.String() + ":" + scope + ":" + key

	reserved, stored, err := idem.store.Reserve(ctx, storeKey, idem.cfg.TTL)
	if err != nil {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !reserved {
		if stored == "" {
			return nil, false, shared.Validation(shared.EntityNone, "a request with this idempotency key is still in progress").
				WithDetail("field", "Idempotency-Key")
		}
		var prev R
		if err := json.Unmarshal([]byte(stored), &prev); err != nil {
			return nil, false, fmt.Errorf("decode idempotent result: %w", err)
		}
		return &prev, true, nil
	}

	result, err = fn()
	if err != nil {
		if relErr := idem.store.Release(ctx, storeKey); relErr != nil {
			logger.L(ctx).Warn("failed to release idempotency key", zap.String("scope", scope), zap.Error(relErr))
		}
		return nil, false, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, false, fmt.Errorf("encode idempotent result: %w", err)
	}
	if err := idem.store.Complete(ctx, storeKey, string(payload), idem.cfg.TTL); err != nil {
		// The mutation is already committed.
		logger.L(ctx).Warn("failed to store idempotent result", zap.String("scope", scope), zap.Error(err))
	}
	return result, false, nil
}
