package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

func getLedgerDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/estateledger?parseTime=true"
	}

	db, err := NewDB(dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func seedTestLedger(t *testing.T, db *sqlx.DB, accountID, propertyID string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, kyc_status, cash_balance, created_at)
		VALUES (?, 'Test Investor', 'verified', 1000.00, NOW(6))
		ON DUPLICATE KEY UPDATE cash_balance = 1000.00`, accountID)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO properties (id, name, location, total_value, token_price,
			tokens_available, monthly_rent_per_token, annual_yield, description, image_url)
		VALUES (?, 'Test House', 'Testerdam', 2500000, 100.00, 25000, 0.3700, 4.40, '', '')
		ON DUPLICATE KEY UPDATE token_price = 100.00, tokens_available = 25000`, propertyID)
	if err != nil {
		t.Fatalf("seed property: %v", err)
	}

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, accountID)
		db.ExecContext(ctx, `DELETE FROM portfolio_snapshots WHERE account_id = ?`, accountID)
		db.ExecContext(ctx, `DELETE FROM holdings WHERE account_id = ?`, accountID)
		db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
		db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, propertyID)
	})
}

func TestApply_SettlementBatchCommits(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := adapter.Apply(ctx,
		port.DebitCash{AccountID: accountID, Amount: decimal.RequireFromString("500.00")},
		port.AdjustSupply{PropertyID: propertyID, Delta: -5},
		port.CreateHolding{Holding: domain.Holding{
			AccountID:    accountID,
			PropertyID:   propertyID,
			Quantity:     5,
			LastPayoutAt: now,
		}},
	)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	account, err := adapter.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !account.CashBalance.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("expected balance 500.00, got %s", account.CashBalance)
	}

	property, _ := adapter.GetProperty(ctx, propertyID)
	if property.TokensAvailable != 24995 {
		t.Errorf("expected 24995 tokens available, got %d", property.TokensAvailable)
	}

	holding, _ := adapter.GetHolding(ctx, accountID, propertyID)
	if holding == nil || holding.Quantity != 5 {
		t.Errorf("expected holding of 5, got %+v", holding)
	}
}

func TestApply_FailedGuardRollsBackWholeBatch(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	// Debit succeeds, oversell fails: nothing may persist.
	err := adapter.Apply(ctx,
		port.DebitCash{AccountID: accountID, Amount: decimal.RequireFromString("100.00")},
		port.AdjustSupply{PropertyID: propertyID, Delta: -25001},
	)
	if !errors.Is(err, port.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	account, _ := adapter.GetAccount(ctx, accountID)
	if !account.CashBalance.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("expected balance untouched at 1000.00, got %s", account.CashBalance)
	}
	property, _ := adapter.GetProperty(ctx, propertyID)
	if property.TokensAvailable != 25000 {
		t.Errorf("expected supply untouched at 25000, got %d", property.TokensAvailable)
	}
}

func TestApply_ZeroAmountCreditIsNotAConflict(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	// A no-op UPDATE matches a row without changing it. The connection runs
	// with CLIENT_FOUND_ROWS, so the guard must not read this as a lost race.
	err := adapter.Apply(ctx,
		port.CreditCash{AccountID: accountID, Amount: decimal.Zero})
	if err != nil {
		t.Fatalf("zero-amount credit: %v", err)
	}

	account, _ := adapter.GetAccount(ctx, accountID)
	if !account.CashBalance.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("expected balance unchanged at 1000.00, got %s", account.CashBalance)
	}
}

func TestApply_DebitGuardRejectsOverdraft(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	adapter := NewMySQLAdapter(db)

	err := adapter.Apply(context.Background(),
		port.DebitCash{AccountID: accountID, Amount: decimal.RequireFromString("1000.01")})
	if !errors.Is(err, port.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestApply_DuplicateHoldingConflicts(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	holding := domain.Holding{
		AccountID:    accountID,
		PropertyID:   propertyID,
		Quantity:     1,
		LastPayoutAt: time.Now().UTC(),
	}

	if err := adapter.Apply(ctx, port.CreateHolding{Holding: holding}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := adapter.Apply(ctx, port.CreateHolding{Holding: holding})
	if !errors.Is(err, port.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate, got %v", err)
	}
}

func TestApply_MarkPayoutGuard(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := adapter.Apply(ctx, port.CreateHolding{Holding: domain.Holding{
		AccountID:    accountID,
		PropertyID:   propertyID,
		Quantity:     10,
		LastPayoutAt: now.Add(-31 * 24 * time.Hour),
	}})
	if err != nil {
		t.Fatalf("create holding: %v", err)
	}

	mark := port.MarkPayout{
		AccountID:      accountID,
		PropertyID:     propertyID,
		PaidAt:         now,
		EligibleBefore: now.Add(-30 * 24 * time.Hour),
	}
	if err := adapter.Apply(ctx, mark); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	// Holding is now inside the window, the same guard must reject.
	err = adapter.Apply(ctx, mark)
	if !errors.Is(err, port.ErrConflict) {
		t.Fatalf("expected ErrConflict on second mark, got %v", err)
	}
}

func TestApply_SnapshotCadenceGuard(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := port.AppendSnapshot{
		Snapshot: domain.PortfolioSnapshot{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Value:     decimal.RequireFromString("1000.00"),
			Timestamp: now,
		},
		UnlessSince: now.Add(-24 * time.Hour),
	}
	if err := adapter.Apply(ctx, first); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}

	second := first
	second.Snapshot.ID = uuid.NewString()
	second.Snapshot.Timestamp = now.Add(time.Minute)
	second.UnlessSince = now.Add(time.Minute).Add(-24 * time.Hour)
	err := adapter.Apply(ctx, second)
	if !errors.Is(err, port.ErrConflict) {
		t.Fatalf("expected ErrConflict inside the window, got %v", err)
	}

	latest, _ := adapter.LatestSnapshot(ctx, accountID)
	if latest == nil || latest.ID != first.Snapshot.ID {
		t.Error("expected only the first snapshot to persist")
	}
}

func TestListTransactions_NewestFirst(t *testing.T) {
	db := getLedgerDB(t)
	defer db.Close()

	accountID := "test-acct-" + uuid.NewString()
	propertyID := "test-prop-" + uuid.NewString()
	seedTestLedger(t, db, accountID, propertyID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		err := adapter.Apply(ctx, port.AppendTransaction{Transaction: domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Type:        domain.TransactionDeposit,
			Amount:      decimal.NewFromInt(int64(i + 1)),
			Description: "Cash added to account",
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		}})
		if err != nil {
			t.Fatalf("append transaction %d: %v", i, err)
		}
	}

	transactions, err := adapter.ListTransactions(ctx, accountID, 2)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	if !transactions[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected newest first, got amount %s", transactions[0].Amount)
	}
}
