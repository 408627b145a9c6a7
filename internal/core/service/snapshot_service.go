package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

// DefaultSnapshotInterval is the minimum elapsed time between two portfolio
// snapshots for the same account.
const DefaultSnapshotInterval = 24 * time.Hour

type SnapshotConfig struct {
	// Interval is the per-account eligibility window. Zero means
	// DefaultSnapshotInterval.
	Interval time.Duration
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// SnapshotService records timestamped total-portfolio-value samples. The
// value is always recomputed fresh from current holdings and catalog prices,
// never carried forward from the previous sample.
type SnapshotService struct {
	store    port.LedgerStore
	interval time.Duration
	now      func() time.Time
}

func NewSnapshotService(store port.LedgerStore, cfg SnapshotConfig) *SnapshotService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSnapshotInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SnapshotService{store: store, interval: cfg.Interval, now: cfg.Now}
}

// Run records a snapshot if the account's most recent one is older than the
// eligibility window (or none exists). It returns the recorded snapshot, or
// nil when the pass was a no-op.
func (s *SnapshotService) Run(ctx context.Context, accountID string) (*domain.PortfolioSnapshot, error) {
	var recorded *domain.PortfolioSnapshot
	err := withConflictRetry(ctx, func() error {
		recorded = nil

		last, err := s.store.LatestSnapshot(ctx, accountID)
		if err != nil {
			return fmt.Errorf("read latest snapshot: %w", err)
		}
		now := s.now().UTC()
		if last != nil && now.Sub(last.Timestamp) < s.interval {
			return nil
		}

		holdings, err := s.store.ListHoldings(ctx, accountID)
		if err != nil {
			return fmt.Errorf("list holdings: %w", err)
		}
		value := decimal.Zero
		for _, h := range holdings {
			property, err := s.store.GetProperty(ctx, h.PropertyID)
			if err != nil {
				return fmt.Errorf("read property %s: %w", h.PropertyID, err)
			}
			if property == nil {
				continue
			}
			value = value.Add(h.Value(property.TokenPrice))
		}

		snapshot := domain.PortfolioSnapshot{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Value:     value,
			Timestamp: now,
		}
		if err := s.store.Apply(ctx, port.AppendSnapshot{
			Snapshot:    snapshot,
			UnlessSince: now.Add(-s.interval),
		}); err != nil {
			return err
		}
		recorded = &snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}
