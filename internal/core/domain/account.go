package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

type Account struct {
	ID          string
	DisplayName string
	KYCStatus   KYCStatus
	CashBalance decimal.Decimal
	CreatedAt   time.Time
}
