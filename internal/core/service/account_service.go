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

// AccountService owns an account's cash balance and audit trail. Every
// balance change lands in the same atomic batch as its transaction record,
// so the balance and the trail cannot diverge.
type AccountService struct {
	store port.LedgerStore
	cache port.CacheRepository
}

func NewAccountService(store port.LedgerStore, cache port.CacheRepository) *AccountService {
	return &AccountService{store: store, cache: cache}
}

// Position is one holding priced at the current catalog price.
type Position struct {
	PropertyID   string
	PropertyName string
	Quantity     int
	TokenPrice   decimal.Decimal
	Value        decimal.Decimal
}

func (s *AccountService) Deposit(ctx context.Context, requestID, accountID string, amount decimal.Decimal) error {
	return s.adjust(ctx, requestID, accountID, amount, false)
}

func (s *AccountService) Withdraw(ctx context.Context, requestID, accountID string, amount decimal.Decimal) error {
	return s.adjust(ctx, requestID, accountID, amount, true)
}

func (s *AccountService) adjust(ctx context.Context, requestID, accountID string, amount decimal.Decimal, withdraw bool) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if requestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, "cash:"+requestID)
		if err != nil {
			return fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return ErrDuplicateRequest
		}
	}

	err := withConflictRetry(ctx, func() error {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("read account: %w", err)
		}
		if account == nil {
			return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}

		tx := domain.Transaction{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Timestamp: time.Now().UTC(),
		}
		var balanceOp port.BatchOp
		if withdraw {
			if account.CashBalance.LessThan(amount) {
				return ErrInsufficientFunds
			}
			balanceOp = port.DebitCash{AccountID: accountID, Amount: amount}
			tx.Type = domain.TransactionWithdrawal
			tx.Amount = amount.Neg()
			tx.Description = "Cash withdrawn to bank"
		} else {
			balanceOp = port.CreditCash{AccountID: accountID, Amount: amount}
			tx.Type = domain.TransactionDeposit
			tx.Amount = amount
			tx.Description = "Cash added to account"
		}

		return s.store.Apply(ctx, balanceOp, port.AppendTransaction{Transaction: tx})
	})
	if err != nil {
		return err
	}

	if err := s.cache.PublishAccountChanged(ctx, accountID); err != nil {
		log.Printf("publish account change for %s: %v", accountID, err)
	}
	return nil
}

// Summary returns the account record.
func (s *AccountService) Summary(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return account, nil
}

// Portfolio returns the account's positions priced at current catalog prices
// together with their total value. Holdings whose property is missing from
// the catalog are valued at zero.
func (s *AccountService) Portfolio(ctx context.Context, accountID string) ([]Position, decimal.Decimal, error) {
	holdings, err := s.store.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("list holdings: %w", err)
	}

	positions := make([]Position, 0, len(holdings))
	total := decimal.Zero
	for _, h := range holdings {
		pos := Position{PropertyID: h.PropertyID, Quantity: h.Quantity}
		property, err := s.store.GetProperty(ctx, h.PropertyID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("read property %s: %w", h.PropertyID, err)
		}
		if property != nil {
			pos.PropertyName = property.Name
			pos.TokenPrice = property.TokenPrice
			pos.Value = h.Value(property.TokenPrice)
		}
		total = total.Add(pos.Value)
		positions = append(positions, pos)
	}
	return positions, total, nil
}

// Transactions returns the account's audit trail, newest first.
func (s *AccountService) Transactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	return s.store.ListTransactions(ctx, accountID, limit)
}

// History returns the account's portfolio-value samples, oldest first.
func (s *AccountService) History(ctx context.Context, accountID string) ([]domain.PortfolioSnapshot, error) {
	return s.store.ListSnapshots(ctx, accountID)
}
