package service

import (
	"context"
	"time"

	"github.com/wenwu/saas-platform/esim-storefront/internal/models"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

// PersistenceState reports a write without waiting for it. A nil Pending
// means nothing had to be written.
func PersistenceState(p *store.Pending) string {
	if p == nil {
		return models.PersistencePersisted
	}
	select {
	case <-p.Done():
		if p.Err() != nil {
			return models.PersistenceFailed
		}
		return models.PersistencePersisted
	default:
		return models.PersistenceQueued
	}
}

// AwaitPersistence waits up to timeout for the write and reports its outcome
func AwaitPersistence(ctx context.Context, p *store.Pending, timeout time.Duration) (string, error) {
	if p == nil {
		return models.PersistencePersisted, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return models.PersistenceQueued, nil
		}
		return models.PersistenceFailed, err
	}
	return models.PersistencePersisted, nil
}
