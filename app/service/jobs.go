package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// RunExpireSweepBatch expires PENDING transactions whose deadline passed without their
// expiry task completing.
func (s *TransactionService) RunExpireSweepBatch(ctx context.Context) error {
	now := s.now()
	items, err := s.transactions.ListExpiredPending(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return err
	}

	var firstErr error
	expired := 0
	for _, tx := range items {
		if tx == nil {
			continue
		}
		updated, err := s.expirePending(ctx, tx, "sweep")
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if updated {
			expired++
		}
	}

	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"scanned": len(items),
			"expired": expired,
		}).Info("Expire sweep completed")
	}
	return firstErr
}
