package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is a timestamped total-portfolio-value sample. The value
// is always recomputed from current holdings and catalog prices at record
// time, never carried forward from the previous sample.
type PortfolioSnapshot struct {
	ID        string
	AccountID string
	Value     decimal.Decimal
	Timestamp time.Time
}
