package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

const mysqlErrDuplicateEntry = 1062

// MySQLAdapter implements port.LedgerStore on MySQL. Every Apply runs inside
// one transaction; guarded operations compile to conditional statements whose
// rows-affected count is checked, so a failed guard rolls the whole batch
// back with port.ErrConflict.
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type accountRow struct {
	ID          string          `db:"id"`
	DisplayName string          `db:"display_name"`
	KYCStatus   string          `db:"kyc_status"`
	CashBalance decimal.Decimal `db:"cash_balance"`
	CreatedAt   time.Time       `db:"created_at"`
}

type propertyRow struct {
	ID                  string          `db:"id"`
	Name                string          `db:"name"`
	Location            string          `db:"location"`
	TotalValue          decimal.Decimal `db:"total_value"`
	TokenPrice          decimal.Decimal `db:"token_price"`
	TokensAvailable     int             `db:"tokens_available"`
	MonthlyRentPerToken decimal.Decimal `db:"monthly_rent_per_token"`
	AnnualYield         decimal.Decimal `db:"annual_yield"`
	Description         string          `db:"description"`
	ImageURL            string          `db:"image_url"`
}

type holdingRow struct {
	AccountID    string    `db:"account_id"`
	PropertyID   string    `db:"property_id"`
	Quantity     int       `db:"quantity"`
	LastPayoutAt time.Time `db:"last_payout_at"`
}

type transactionRow struct {
	ID          string          `db:"id"`
	AccountID   string          `db:"account_id"`
	Type        string          `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Timestamp   time.Time       `db:"timestamp"`
}

type snapshotRow struct {
	ID        string          `db:"id"`
	AccountID string          `db:"account_id"`
	Value     decimal.Decimal `db:"value"`
	Timestamp time.Time       `db:"timestamp"`
}

type proposalRow struct {
	ID           string `db:"id"`
	PropertyID   string `db:"property_id"`
	PropertyName string `db:"property_name"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	YesVotes     int    `db:"yes_votes"`
	NoVotes      int    `db:"no_votes"`
}

func (m *MySQLAdapter) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var row accountRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, display_name, kyc_status, cash_balance, created_at
		FROM accounts WHERE id = ?`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &domain.Account{
		ID:          row.ID,
		DisplayName: row.DisplayName,
		KYCStatus:   domain.KYCStatus(row.KYCStatus),
		CashBalance: row.CashBalance,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (m *MySQLAdapter) ListAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := m.db.SelectContext(ctx, &ids, `SELECT id FROM accounts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("query account ids: %w", err)
	}
	return ids, nil
}

func (m *MySQLAdapter) GetProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	var row propertyRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, name, location, total_value, token_price, tokens_available,
		       monthly_rent_per_token, annual_yield, description, image_url
		FROM properties WHERE id = ?`, propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query property: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (m *MySQLAdapter) ListProperties(ctx context.Context) ([]domain.Property, error) {
	var rows []propertyRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, name, location, total_value, token_price, tokens_available,
		       monthly_rent_per_token, annual_yield, description, image_url
		FROM properties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	properties := make([]domain.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, row.toDomain())
	}
	return properties, nil
}

func (r propertyRow) toDomain() domain.Property {
	return domain.Property{
		ID:                  r.ID,
		Name:                r.Name,
		Location:            r.Location,
		TotalValue:          r.TotalValue,
		TokenPrice:          r.TokenPrice,
		TokensAvailable:     r.TokensAvailable,
		MonthlyRentPerToken: r.MonthlyRentPerToken,
		AnnualYield:         r.AnnualYield,
		Description:         r.Description,
		ImageURL:            r.ImageURL,
	}
}

func (m *MySQLAdapter) GetHolding(ctx context.Context, accountID, propertyID string) (*domain.Holding, error) {
	var row holdingRow
	err := m.db.GetContext(ctx, &row, `
		SELECT account_id, property_id, quantity, last_payout_at
		FROM holdings WHERE account_id = ? AND property_id = ?`, accountID, propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query holding: %w", err)
	}
	h := domain.Holding(row)
	return &h, nil
}

func (m *MySQLAdapter) ListHoldings(ctx context.Context, accountID string) ([]domain.Holding, error) {
	var rows []holdingRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT account_id, property_id, quantity, last_payout_at
		FROM holdings WHERE account_id = ? ORDER BY property_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	holdings := make([]domain.Holding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, domain.Holding(row))
	}
	return holdings, nil
}

func (m *MySQLAdapter) GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	var row proposalRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, property_id, property_name, title, description, yes_votes, no_votes
		FROM proposals WHERE id = ?`, proposalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query proposal: %w", err)
	}
	p := domain.Proposal(row)
	return &p, nil
}

func (m *MySQLAdapter) ListProposals(ctx context.Context) ([]domain.Proposal, error) {
	var rows []proposalRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, property_id, property_name, title, description, yes_votes, no_votes
		FROM proposals ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	proposals := make([]domain.Proposal, 0, len(rows))
	for _, row := range rows {
		proposals = append(proposals, domain.Proposal(row))
	}
	return proposals, nil
}

func (m *MySQLAdapter) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []transactionRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, type, amount, description, timestamp
		FROM transactions WHERE account_id = ?
		ORDER BY timestamp DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	transactions := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, domain.Transaction{
			ID:          row.ID,
			AccountID:   row.AccountID,
			Type:        domain.TransactionType(row.Type),
			Amount:      row.Amount,
			Description: row.Description,
			Timestamp:   row.Timestamp,
		})
	}
	return transactions, nil
}

func (m *MySQLAdapter) ListSnapshots(ctx context.Context, accountID string) ([]domain.PortfolioSnapshot, error) {
	var rows []snapshotRow
	err := m.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, value, timestamp
		FROM portfolio_snapshots WHERE account_id = ?
		ORDER BY timestamp ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	snapshots := make([]domain.PortfolioSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, domain.PortfolioSnapshot(row))
	}
	return snapshots, nil
}

func (m *MySQLAdapter) LatestSnapshot(ctx context.Context, accountID string) (*domain.PortfolioSnapshot, error) {
	var row snapshotRow
	err := m.db.GetContext(ctx, &row, `
		SELECT id, account_id, value, timestamp
		FROM portfolio_snapshots WHERE account_id = ?
		ORDER BY timestamp DESC LIMIT 1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	s := domain.PortfolioSnapshot(row)
	return &s, nil
}

func (m *MySQLAdapter) Apply(ctx context.Context, ops ...port.BatchOp) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, tx *sqlx.Tx, op port.BatchOp) error {
	switch o := op.(type) {
	case port.CreditCash:
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET cash_balance = cash_balance + ?
			WHERE id = ?`, o.Amount, o.AccountID)
		return guarded(res, err, "credit cash")

	case port.DebitCash:
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET cash_balance = cash_balance - ?
			WHERE id = ? AND cash_balance >= ?`, o.Amount, o.AccountID, o.Amount)
		return guarded(res, err, "debit cash")

	case port.AdjustSupply:
		res, err := tx.ExecContext(ctx, `
			UPDATE properties SET tokens_available = tokens_available + ?
			WHERE id = ? AND tokens_available + ? >= 0`, o.Delta, o.PropertyID, o.Delta)
		return guarded(res, err, "adjust supply")

	case port.CreateHolding:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (account_id, property_id, quantity, last_payout_at)
			VALUES (?, ?, ?, ?)`,
			o.Holding.AccountID, o.Holding.PropertyID, o.Holding.Quantity, o.Holding.LastPayoutAt)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			// Position was opened concurrently; the caller re-reads and retries
			// with an increment instead.
			return port.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("create holding: %w", err)
		}
		return nil

	case port.AddToHolding:
		res, err := tx.ExecContext(ctx, `
			UPDATE holdings SET quantity = quantity + ?
			WHERE account_id = ? AND property_id = ?`,
			o.Quantity, o.AccountID, o.PropertyID)
		return guarded(res, err, "add to holding")

	case port.DeleteHolding:
		res, err := tx.ExecContext(ctx, `
			DELETE FROM holdings WHERE account_id = ? AND property_id = ?`,
			o.AccountID, o.PropertyID)
		return guarded(res, err, "delete holding")

	case port.MarkPayout:
		res, err := tx.ExecContext(ctx, `
			UPDATE holdings SET last_payout_at = ?
			WHERE account_id = ? AND property_id = ? AND last_payout_at <= ?`,
			o.PaidAt, o.AccountID, o.PropertyID, o.EligibleBefore)
		return guarded(res, err, "mark payout")

	case port.AppendTransaction:
		t := o.Transaction
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, account_id, type, amount, description, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.AccountID, string(t.Type), t.Amount, t.Description, t.Timestamp)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil

	case port.AppendSnapshot:
		s := o.Snapshot
		res, err := tx.ExecContext(ctx, `
			INSERT INTO portfolio_snapshots (id, account_id, value, timestamp)
			SELECT ?, ?, ?, ? FROM DUAL
			WHERE NOT EXISTS (
				SELECT 1 FROM portfolio_snapshots WHERE account_id = ? AND timestamp > ?
			)`, s.ID, s.AccountID, s.Value, s.Timestamp, s.AccountID, o.UnlessSince)
		return guarded(res, err, "append snapshot")

	case port.CastVote:
		column := "yes_votes"
		if o.Choice == domain.VoteNo {
			column = "no_votes"
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE proposals SET `+column+` = `+column+` + 1 WHERE id = ?`,
			o.ProposalID)
		return guarded(res, err, "cast vote")

	default:
		return fmt.Errorf("unknown batch op %T", op)
	}
}

// guarded converts a zero matched-rows result into port.ErrConflict: the
// operation's precondition no longer held when the statement ran. The
// connection runs with CLIENT_FOUND_ROWS (set in NewDB) so RowsAffected
// counts rows matched by the WHERE clause, not rows changed.
func guarded(result sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if rows == 0 {
		return port.ErrConflict
	}
	return nil
}
