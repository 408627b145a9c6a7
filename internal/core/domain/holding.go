package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is an account's position in one property's tokens. LastPayoutAt is
// the holding's own payout clock: set to the Unix epoch when the position is
// first opened, advanced only by rental payouts, never reset by top-up buys.
type Holding struct {
	AccountID    string
	PropertyID   string
	Quantity     int
	LastPayoutAt time.Time
}

// Value prices the holding at the given per-token price.
func (h Holding) Value(tokenPrice decimal.Decimal) decimal.Decimal {
	return tokenPrice.Mul(decimal.NewFromInt(int64(h.Quantity)))
}
