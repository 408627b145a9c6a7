package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit      TransactionType = "Deposit"
	TransactionWithdrawal   TransactionType = "Withdrawal"
	TransactionPurchase     TransactionType = "Purchase"
	TransactionSale         TransactionType = "Sale"
	TransactionRentalIncome TransactionType = "Rental Income"
)

// Transaction is one entry of an account's append-only audit trail. Amount is
// signed: credits positive, debits negative.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Timestamp   time.Time
}
