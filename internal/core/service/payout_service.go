package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

// DefaultPayoutInterval is the minimum elapsed time between two rental
// payouts on the same holding.
const DefaultPayoutInterval = 30 * 24 * time.Hour

type PayoutConfig struct {
	// Interval is the per-holding eligibility window. Zero means
	// DefaultPayoutInterval.
	Interval time.Duration
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// PayoutService credits accrued rental income. Eligibility is evaluated per
// holding against its own LastPayoutAt, and a whole pass commits as one
// atomic batch, so re-running the pass immediately afterwards pays nothing.
type PayoutService struct {
	store    port.LedgerStore
	interval time.Duration
	now      func() time.Time
}

func NewPayoutService(store port.LedgerStore, cfg PayoutConfig) *PayoutService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPayoutInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PayoutService{store: store, interval: cfg.Interval, now: cfg.Now}
}

// Run executes one payout pass for the account and returns the total amount
// credited. Holdings still inside their window are skipped without side
// effects; a holding whose property is missing from the catalog is logged
// and skipped.
func (s *PayoutService) Run(ctx context.Context, accountID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := withConflictRetry(ctx, func() error {
		total = decimal.Zero

		holdings, err := s.store.ListHoldings(ctx, accountID)
		if err != nil {
			return fmt.Errorf("list holdings: %w", err)
		}

		now := s.now().UTC()
		cutoff := now.Add(-s.interval)

		var ops []port.BatchOp
		for _, h := range holdings {
			if h.LastPayoutAt.After(cutoff) {
				continue
			}
			property, err := s.store.GetProperty(ctx, h.PropertyID)
			if err != nil {
				return fmt.Errorf("read property %s: %w", h.PropertyID, err)
			}
			if property == nil {
				log.Printf("payout: account %s holds unknown property %s, skipping", accountID, h.PropertyID)
				continue
			}

			// Round to cents so the credited amount and the audit record match
			// the ledger's balance precision exactly.
			rent := property.MonthlyRentPerToken.Mul(decimal.NewFromInt(int64(h.Quantity))).Round(2)
			total = total.Add(rent)
			ops = append(ops,
				port.MarkPayout{
					AccountID:      accountID,
					PropertyID:     h.PropertyID,
					PaidAt:         now,
					EligibleBefore: cutoff,
				},
				port.AppendTransaction{Transaction: domain.Transaction{
					ID:          uuid.NewString(),
					AccountID:   accountID,
					Type:        domain.TransactionRentalIncome,
					Amount:      rent,
					Description: fmt.Sprintf("%d tokens of %s", h.Quantity, property.Name),
					Timestamp:   now,
				}},
			)
		}
		if len(ops) == 0 {
			return nil
		}

		// Zero-rent holdings still get their clocks advanced, but a zero
		// credit is omitted from the batch.
		if total.IsPositive() {
			ops = append([]port.BatchOp{port.CreditCash{AccountID: accountID, Amount: total}}, ops...)
		}
		return s.store.Apply(ctx, ops...)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
