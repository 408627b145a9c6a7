package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhatm/estate-ledger/internal/core/domain"
)

// ErrConflict is returned by Apply when a guarded operation loses a write
// race (a guard no longer holds by commit time). The whole batch is rolled
// back; callers may re-read and retry.
var ErrConflict = errors.New("conflicting concurrent write")

// LedgerStore is the keyed record store the engine is written against. Reads
// return nil (no error) for absent records. Apply executes a batch of
// mutations as a single indivisible unit: all of them become visible
// together, or none at all.
type LedgerStore interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccountIDs(ctx context.Context) ([]string, error)

	GetProperty(ctx context.Context, propertyID string) (*domain.Property, error)
	ListProperties(ctx context.Context) ([]domain.Property, error)

	GetHolding(ctx context.Context, accountID, propertyID string) (*domain.Holding, error)
	ListHoldings(ctx context.Context, accountID string) ([]domain.Holding, error)

	GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error)
	ListProposals(ctx context.Context) ([]domain.Proposal, error)

	// ListTransactions returns an account's audit trail, newest first.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)

	// ListSnapshots returns an account's portfolio history, oldest first.
	ListSnapshots(ctx context.Context, accountID string) ([]domain.PortfolioSnapshot, error)

	// LatestSnapshot returns the most recent snapshot for the account, or nil.
	LatestSnapshot(ctx context.Context, accountID string) (*domain.PortfolioSnapshot, error)

	Apply(ctx context.Context, ops ...BatchOp) error
}

// BatchOp is one mutation inside an atomic batch. Guarded operations carry
// their own precondition; a guard that fails at commit time aborts the batch
// with ErrConflict.
type BatchOp interface {
	batchOp()
}

// CreditCash adds Amount to the account's cash balance.
type CreditCash struct {
	AccountID string
	Amount    decimal.Decimal
}

// DebitCash subtracts Amount from the account's cash balance.
// Guard: the balance must cover Amount, so it can never go negative.
type DebitCash struct {
	AccountID string
	Amount    decimal.Decimal
}

// AdjustSupply adds Delta (possibly negative) to the property's available
// token count. Guard: the resulting count must be >= 0.
type AdjustSupply struct {
	PropertyID string
	Delta      int
}

// CreateHolding opens a new position. Guard: no holding may already exist
// for (AccountID, PropertyID).
type CreateHolding struct {
	Holding domain.Holding
}

// AddToHolding increments an existing position's quantity.
// Guard: the holding must still exist.
type AddToHolding struct {
	AccountID  string
	PropertyID string
	Quantity   int
}

// DeleteHolding removes a position entirely. Guard: the holding must still
// exist.
type DeleteHolding struct {
	AccountID  string
	PropertyID string
}

// MarkPayout advances a holding's payout clock to PaidAt. Guard: the
// holding's current LastPayoutAt must not be after EligibleBefore, so two
// racing payout passes cannot both credit the same window.
type MarkPayout struct {
	AccountID      string
	PropertyID     string
	PaidAt         time.Time
	EligibleBefore time.Time
}

// AppendTransaction appends one immutable audit record.
type AppendTransaction struct {
	Transaction domain.Transaction
}

// AppendSnapshot appends one portfolio-value sample. Guard: the account must
// not already have a snapshot timestamped after UnlessSince.
type AppendSnapshot struct {
	Snapshot    domain.PortfolioSnapshot
	UnlessSince time.Time
}

// CastVote increments the chosen counter on a proposal by one.
type CastVote struct {
	ProposalID string
	Choice     domain.VoteChoice
}

func (CreditCash) batchOp()        {}
func (DebitCash) batchOp()         {}
func (AdjustSupply) batchOp()      {}
func (CreateHolding) batchOp()     {}
func (AddToHolding) batchOp()      {}
func (DeleteHolding) batchOp()     {}
func (MarkPayout) batchOp()        {}
func (AppendTransaction) batchOp() {}
func (AppendSnapshot) batchOp()    {}
func (CastVote) batchOp()          {}
