package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/model"
)

// Expire moves every CREATED transaction past its expiry to EXPIRED and
// returns how many changed. It is safe to run concurrently and repeatedly.
func (s *TransactionService) Expire(ctx context.Context) (int, error) {
	batch := s.opts.SweepBatch
	if batch <= 0 {
		batch = 100
	}

	total := 0
	for {
		expired, err := s.store.ExpireCreated(ctx, s.now(), batch)
		if err != nil {
			return total, fmt.Errorf("expiring transactions: %w", err)
		}
		for i := range expired {
			tx := &expired[i]
			s.record(ctx, &model.LogEntry{
				TransactionID: &tx.ID,
				Action:        ActionTransition,
				Description:   fmt.Sprintf("%s -> %s", model.StatusCreated, model.StatusExpired),
			})
			s.publish(ctx, "transaction.expired", tx)
		}
		total += len(expired)
		if len(expired) < batch {
			break
		}
	}

	if total > 0 {
		s.logger.Info("expired transactions", zap.Int("count", total))
	}
	return total, nil
}

// RunSweeper calls Expire every interval until ctx is done.
func (s *TransactionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Expire(ctx); err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
