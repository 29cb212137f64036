package listener

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"streamprime-wallet-go/internal/gateway"
	"streamprime-wallet-go/internal/models"
)

// SweepOnce settles one batch of stale pending recharges
func (s *RechargeSweeper) SweepOnce(ctx context.Context) SweepSummary {
	var summary SweepSummary

	olderThan := s.now().Add(-s.minAge)
	entries, err := s.pending.ListPendingRecharges(ctx, olderThan, s.batchSize)
	if err != nil {
		zap.L().Error("Failed to list pending recharges", zap.Error(err))
		summary.Errors++
		return summary
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, maxConcurrentSettles)
	)
	for _, entry := range entries {
		if s.recentlyChecked(entry.Id) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(e models.LedgerEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := s.settler.SettlePendingRecharge(ctx, e)

			mu.Lock()
			defer mu.Unlock()
			summary.Examined++
			if err != nil {
				summary.Errors++
				zap.L().Error("Failed to settle pending recharge",
					zap.String("entry_id", e.Id),
					zap.String("account_id", e.AccountId),
					zap.Error(err))
				return
			}
			switch outcome {
			case gateway.SettlementCredited:
				summary.Credited++
			case gateway.SettlementFailed:
				summary.Failed++
			case gateway.SettlementPending:
				summary.Pending++
				s.markChecked(e.Id)
			}
		}(entry)
	}
	wg.Wait()

	if summary.Examined > 0 || summary.Errors > 0 {
		zap.L().Info("Recharge sweep complete",
			zap.Int("examined", summary.Examined),
			zap.Int("credited", summary.Credited),
			zap.Int("failed", summary.Failed),
			zap.Int("pending", summary.Pending),
			zap.Int("errors", summary.Errors))
	}
	return summary
}

func (s *RechargeSweeper) recentlyChecked(entryId string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	checkedAt, exists := s.checkedEntries[entryId]
	return exists && s.now().Sub(checkedAt) < s.minAge
}

func (s *RechargeSweeper) markChecked(entryId string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.checkedEntries[entryId] = s.now()
}

// cleanupCheckedEntries drops marks old enough to no longer suppress a check
func (s *RechargeSweeper) cleanupCheckedEntries() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := s.now().Add(-s.minAge)
	cleaned := 0
	for entryId, checkedAt := range s.checkedEntries {
		if checkedAt.Before(cutoff) {
			delete(s.checkedEntries, entryId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up checked recharge marks",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(s.checkedEntries)))
	}
}
