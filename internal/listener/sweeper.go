/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package listener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"streamprime-wallet-go/internal/gateway"
	"streamprime-wallet-go/internal/models"

	"go.uber.org/zap"
)

const (
	defaultPollingInterval = time.Minute
	defaultMinAge          = 15 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
	defaultBatchSize       = 100
	maxConcurrentSettles   = 4
)

// PendingSource lists recharges still waiting on the provider
type PendingSource interface {
	ListPendingRecharges(ctx context.Context, olderThan time.Time, limit int) ([]models.LedgerEntry, error)
}

// Settler resolves one pending recharge against the provider
type Settler interface {
	Enabled() bool
	SettlePendingRecharge(ctx context.Context, entry models.LedgerEntry) (gateway.Settlement, error)
}

// RechargeSweeperConfig contains configuration for RechargeSweeper
type RechargeSweeperConfig struct {
	Pending         PendingSource
	Settler         Settler
	PollingInterval time.Duration
	MinAge          time.Duration
	CleanupInterval time.Duration
	BatchSize       int
	Now             func() time.Time
}

// RechargeSweeper polls for recharges the client never confirmed and settles
// them from the provider's view of the order.
type RechargeSweeper struct {
	pending PendingSource
	settler Settler

	// entries checked recently and still pending are not re-queried until MinAge passes
	checkedEntries map[string]time.Time
	mutex          sync.RWMutex

	pollingInterval time.Duration
	minAge          time.Duration
	cleanupInterval time.Duration
	batchSize       int
	now             func() time.Time

	started  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// SweepSummary counts what one pass did
type SweepSummary struct {
	Examined int
	Credited int
	Failed   int
	Pending  int
	Errors   int
}

func NewRechargeSweeper(cfg RechargeSweeperConfig) *RechargeSweeper {
	s := &RechargeSweeper{
		pending:         cfg.Pending,
		settler:         cfg.Settler,
		checkedEntries:  make(map[string]time.Time),
		pollingInterval: cfg.PollingInterval,
		minAge:          cfg.MinAge,
		cleanupInterval: cfg.CleanupInterval,
		batchSize:       cfg.BatchSize,
		now:             cfg.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
	if s.pollingInterval <= 0 {
		s.pollingInterval = defaultPollingInterval
	}
	if s.minAge <= 0 {
		s.minAge = defaultMinAge
	}
	if s.cleanupInterval <= 0 {
		s.cleanupInterval = defaultCleanupInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start begins sweeping in the background. It fails when the gateway is
// disabled since nothing could be settled.
func (s *RechargeSweeper) Start(ctx context.Context) error {
	if s.settler == nil || !s.settler.Enabled() {
		return errors.New("recharge sweeper requires an enabled payment gateway")
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("recharge sweeper already started")
	}

	go s.pollLoop(ctx)
	go s.cleanupLoop(ctx)

	zap.L().Info("Recharge sweeper started",
		zap.Duration("polling_interval", s.pollingInterval),
		zap.Duration("min_age", s.minAge))
	return nil
}

// Stop signals the loops to exit and waits for an in-flight pass to finish.
// Stopping a sweeper that never started is a no-op.
func (s *RechargeSweeper) Stop() {
	s.stopOnce.Do(func() {
		zap.L().Info("Stopping recharge sweeper")
		close(s.stopChan)
		if s.started.Load() {
			<-s.doneChan
		}
		zap.L().Info("Recharge sweeper stopped")
	})
}

func (s *RechargeSweeper) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	// first pass picks up anything left pending while the service was down
	s.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *RechargeSweeper) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupCheckedEntries()
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
