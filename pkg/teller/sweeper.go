package teller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	"github.com/chainsafe/vault-teller/pkg/config"
)

// Sweeper periodically reports sends stuck in pending. A send stays
// pending only when the process died between committing the send intent
// and recording the dispatch outcome, so the transport may or may not
// have accepted the message. The sweeper never retries; it surfaces the
// rows for operator reconciliation.
type Sweeper struct {
	store        Store
	logger       *zap.Logger
	interval     time.Duration
	ageThreshold time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates the pending-send sweeper.
func NewSweeper(cfg config.TellerConfig, store Store, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		logger:       logger,
		interval:     cfg.SweepInterval.Std(),
		ageThreshold: cfg.PendingAgeThreshold.Std(),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("Pending-send sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("age_threshold", s.ageThreshold))
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Pending-send sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass: it counts pending sends older than the age
// threshold, updates the gauge and logs each stuck send.
func (s *Sweeper) Sweep(ctx context.Context) error {
	stuck, err := s.store.ListPendingSends(ctx, s.ageThreshold)
	if err != nil {
		return err
	}

	metrics.PendingSends.Set(float64(len(stuck)))
	if len(stuck) == 0 {
		return nil
	}

	for _, send := range stuck {
		s.logger.Warn("Send stuck in pending",
			zap.String("message_id", send.ID.Hex()),
			zap.Uint64("destination_selector", send.DestinationSelector),
			zap.Uint64("nonce", send.Nonce),
			zap.String("share_amount", send.ShareAmount.String()),
			zap.Time("created_at", send.CreatedAt))
	}
	s.logger.Warn("Pending-send sweep summary", zap.Int("stuck", len(stuck)))
	return nil
}
