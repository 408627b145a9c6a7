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

// TradeService settles buys and sells. Each trade touches the account's cash,
// the property's available supply and the account's holding in one atomic
// batch, so no reader ever observes a half-applied trade.
type TradeService struct {
	store port.LedgerStore
	cache port.CacheRepository
}

func NewTradeService(store port.LedgerStore, cache port.CacheRepository) *TradeService {
	return &TradeService{store: store, cache: cache}
}

// Buy purchases quantity tokens of a property at the current catalog price
// and returns the account's resulting holding quantity. An empty requestID
// forgoes duplicate-request protection.
func (s *TradeService) Buy(ctx context.Context, requestID, accountID, propertyID string, quantity int) (int, error) {
	if quantity < 1 {
		return 0, ErrInvalidAmount
	}

	if err := s.claimRequest(ctx, requestID); err != nil {
		return 0, err
	}

	var newQuantity int
	err := withConflictRetry(ctx, func() error {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("read account: %w", err)
		}
		if account == nil {
			return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}

		property, err := s.store.GetProperty(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("read property: %w", err)
		}
		if property == nil {
			return fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
		}
		if quantity > property.TokensAvailable {
			return ErrSupplyExceeded
		}

		cost := property.TokenPrice.Mul(decimal.NewFromInt(int64(quantity)))
		if account.CashBalance.LessThan(cost) {
			return ErrInsufficientFunds
		}

		holding, err := s.store.GetHolding(ctx, accountID, propertyID)
		if err != nil {
			return fmt.Errorf("read holding: %w", err)
		}

		ops := []port.BatchOp{
			port.DebitCash{AccountID: accountID, Amount: cost},
			port.AdjustSupply{PropertyID: propertyID, Delta: -quantity},
		}
		if holding == nil {
			// New position: the payout clock starts at the epoch so the first
			// rental window is immediately open.
			ops = append(ops, port.CreateHolding{Holding: domain.Holding{
				AccountID:    accountID,
				PropertyID:   propertyID,
				Quantity:     quantity,
				LastPayoutAt: time.Unix(0, 0).UTC(),
			}})
			newQuantity = quantity
		} else {
			ops = append(ops, port.AddToHolding{
				AccountID:  accountID,
				PropertyID: propertyID,
				Quantity:   quantity,
			})
			newQuantity = holding.Quantity + quantity
		}
		ops = append(ops, port.AppendTransaction{Transaction: domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Type:        domain.TransactionPurchase,
			Amount:      cost.Neg(),
			Description: fmt.Sprintf("%d tokens of %s", quantity, property.Name),
			Timestamp:   time.Now().UTC(),
		}})

		return s.store.Apply(ctx, ops...)
	})
	if err != nil {
		return 0, err
	}

	s.notifyChanged(ctx, accountID)
	return newQuantity, nil
}

// Sell liquidates the account's entire position in a property at the current
// catalog price (no cost basis is tracked) and returns the proceeds. Partial
// sells are not supported.
func (s *TradeService) Sell(ctx context.Context, requestID, accountID, propertyID string) (decimal.Decimal, error) {
	if err := s.claimRequest(ctx, requestID); err != nil {
		return decimal.Zero, err
	}

	var proceeds decimal.Decimal
	err := withConflictRetry(ctx, func() error {
		holding, err := s.store.GetHolding(ctx, accountID, propertyID)
		if err != nil {
			return fmt.Errorf("read holding: %w", err)
		}
		if holding == nil {
			return fmt.Errorf("holding %s/%s: %w", accountID, propertyID, ErrNotFound)
		}

		property, err := s.store.GetProperty(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("read property: %w", err)
		}
		if property == nil {
			return fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
		}

		proceeds = holding.Value(property.TokenPrice)

		return s.store.Apply(ctx,
			port.CreditCash{AccountID: accountID, Amount: proceeds},
			port.AdjustSupply{PropertyID: propertyID, Delta: holding.Quantity},
			port.DeleteHolding{AccountID: accountID, PropertyID: propertyID},
			port.AppendTransaction{Transaction: domain.Transaction{
				ID:          uuid.NewString(),
				AccountID:   accountID,
				Type:        domain.TransactionSale,
				Amount:      proceeds,
				Description: fmt.Sprintf("%d tokens of %s", holding.Quantity, property.Name),
				Timestamp:   time.Now().UTC(),
			}},
		)
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.notifyChanged(ctx, accountID)
	return proceeds, nil
}

func (s *TradeService) claimRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}
	ok, err := s.cache.SetIdempotency(ctx, "trade:"+requestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

func (s *TradeService) notifyChanged(ctx context.Context, accountID string) {
	if err := s.cache.PublishAccountChanged(ctx, accountID); err != nil {
		log.Printf("publish account change for %s: %v", accountID, err)
	}
}
