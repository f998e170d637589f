package adapters

import (
	"context"
	"fmt"
	"time"

	"evidence-capture/internal/core/cache"
	"evidence-capture/internal/core/logger"
	"evidence-capture/internal/features/sync/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisLeaseManager implements per-tracking-key mutual exclusion on top of the
// coordination cache. Claims carry a TTL so a crashed worker's lease
// self-expires instead of permanently wedging the key.
type RedisLeaseManager struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLeaseManager creates a lease manager with the given TTL.
func NewRedisLeaseManager(c cache.Cache, ttl time.Duration) *RedisLeaseManager {
	return &RedisLeaseManager{
		cache:  c,
		ttl:    ttl,
		logger: logger.Get(),
	}
}

// Acquire claims the key without blocking. A live claim fails immediately with
// domain.ErrLeaseConflict so the caller can surface "sync already in progress".
func (m *RedisLeaseManager) Acquire(ctx context.Context, key string) (*domain.Lease, error) {
	token := uuid.New().String()

	ok, err := m.cache.SetIfAbsent(ctx, key, []byte(token), m.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLeaseConflict, key)
	}

	m.logger.Debug("Lease acquired",
		zap.String("key", key),
		zap.Duration("ttl", m.ttl),
	)

	return &domain.Lease{Key: key, Token: token}, nil
}

// Release drops the claim only if this lease still owns it. A lease already
// expired or reclaimed by another owner is left alone, so double release and
// stale handles are no-ops.
func (m *RedisLeaseManager) Release(ctx context.Context, lease *domain.Lease) error {
	if lease == nil {
		return nil
	}

	deleted, err := m.cache.CompareAndDelete(ctx, lease.Key, []byte(lease.Token))
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", lease.Key, err)
	}
	if !deleted {
		m.logger.Debug("Lease already expired or reassigned on release",
			zap.String("key", lease.Key),
		)
	}
	return nil
}
