package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/adapter/storage"
	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

const (
	testAccountID  = "acct-1"
	testPropertyID = "amsterdam-canal-house"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newFixture seeds the in-memory store with the account and property from
// the settlement scenarios: cash 1000.00, token price 100.00, 25000 tokens
// available, monthly rent 0.37/token.
func newFixture() (*storage.MemoryStore, *storage.MemoryCache) {
	store := storage.NewMemoryStore()
	store.PutAccount(domain.Account{
		ID:          testAccountID,
		DisplayName: "Guest Investor",
		KYCStatus:   domain.KYCStatusVerified,
		CashBalance: dec("1000.00"),
		CreatedAt:   time.Now().UTC(),
	})
	store.PutProperty(domain.Property{
		ID:                  testPropertyID,
		Name:                "Amsterdam Canal House",
		Location:            "Prinsengracht, Amsterdam",
		TotalValue:          dec("2500000"),
		TokenPrice:          dec("100.00"),
		TokensAvailable:     25000,
		MonthlyRentPerToken: dec("0.37"),
		AnnualYield:         dec("4.5"),
	})
	return store, storage.NewMemoryCache()
}

// failingStore wraps a LedgerStore and fails the next N Apply calls with the
// configured error before delegating. The wrapped store is never touched by
// a failed batch, matching the all-or-nothing contract.
type failingStore struct {
	port.LedgerStore
	failures int
	err      error
}

func (f *failingStore) Apply(ctx context.Context, ops ...port.BatchOp) error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return f.LedgerStore.Apply(ctx, ops...)
}
