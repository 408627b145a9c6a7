package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

// MemoryStore implements port.LedgerStore entirely in memory with the same
// guard semantics as the MySQL adapter. Batches are applied to a copy of the
// state and committed only when every operation succeeds, so a failed guard
// leaves the store untouched. Intended for tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	accounts     map[string]domain.Account
	properties   map[string]domain.Property
	holdings     map[string]domain.Holding
	transactions map[string][]domain.Transaction
	snapshots    map[string][]domain.PortfolioSnapshot
	proposals    map[string]domain.Proposal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		accounts:     make(map[string]domain.Account),
		properties:   make(map[string]domain.Property),
		holdings:     make(map[string]domain.Holding),
		transactions: make(map[string][]domain.Transaction),
		snapshots:    make(map[string][]domain.PortfolioSnapshot),
		proposals:    make(map[string]domain.Proposal),
	}}
}

func holdingKey(accountID, propertyID string) string {
	return accountID + "/" + propertyID
}

// PutAccount seeds or replaces an account record. Provisioning only.
func (s *MemoryStore) PutAccount(account domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[account.ID] = account
}

// PutProperty seeds or replaces a catalog entry. Provisioning only.
func (s *MemoryStore) PutProperty(property domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.properties[property.ID] = property
}

// PutProposal seeds or replaces a proposal. Provisioning only.
func (s *MemoryStore) PutProposal(proposal domain.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.proposals[proposal.ID] = proposal
}

func (s *MemoryStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.state.accounts[accountID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListAccountIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.state.accounts))
	for id := range s.state.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) GetProperty(_ context.Context, propertyID string) (*domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.state.properties[propertyID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListProperties(_ context.Context) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	properties := make([]domain.Property, 0, len(s.state.properties))
	for _, p := range s.state.properties {
		properties = append(properties, p)
	}
	return properties, nil
}

func (s *MemoryStore) GetHolding(_ context.Context, accountID, propertyID string) (*domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.state.holdings[holdingKey(accountID, propertyID)]; ok {
		return &h, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, accountID string) ([]domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var holdings []domain.Holding
	for _, h := range s.state.holdings {
		if h.AccountID == accountID {
			holdings = append(holdings, h)
		}
	}
	return holdings, nil
}

func (s *MemoryStore) GetProposal(_ context.Context, proposalID string) (*domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.state.proposals[proposalID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListProposals(_ context.Context) ([]domain.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposals := make([]domain.Proposal, 0, len(s.state.proposals))
	for _, p := range s.state.proposals {
		proposals = append(proposals, p)
	}
	return proposals, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.state.transactions[accountID]
	// Newest first.
	out := make([]domain.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, accountID string) ([]domain.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PortfolioSnapshot(nil), s.state.snapshots[accountID]...), nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, accountID string) (*domain.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.state.snapshots[accountID]
	if len(snaps) == 0 {
		return nil, nil
	}
	last := snaps[len(snaps)-1]
	return &last, nil
}

func (s *MemoryStore) Apply(_ context.Context, ops ...port.BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	for _, op := range ops {
		if err := next.apply(op); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

func (st memState) clone() memState {
	next := memState{
		accounts:     make(map[string]domain.Account, len(st.accounts)),
		properties:   make(map[string]domain.Property, len(st.properties)),
		holdings:     make(map[string]domain.Holding, len(st.holdings)),
		transactions: make(map[string][]domain.Transaction, len(st.transactions)),
		snapshots:    make(map[string][]domain.PortfolioSnapshot, len(st.snapshots)),
		proposals:    make(map[string]domain.Proposal, len(st.proposals)),
	}
	for k, v := range st.accounts {
		next.accounts[k] = v
	}
	for k, v := range st.properties {
		next.properties[k] = v
	}
	for k, v := range st.holdings {
		next.holdings[k] = v
	}
	for k, v := range st.transactions {
		next.transactions[k] = append([]domain.Transaction(nil), v...)
	}
	for k, v := range st.snapshots {
		next.snapshots[k] = append([]domain.PortfolioSnapshot(nil), v...)
	}
	for k, v := range st.proposals {
		next.proposals[k] = v
	}
	return next
}

func (st memState) apply(op port.BatchOp) error {
	switch o := op.(type) {
	case port.CreditCash:
		a, ok := st.accounts[o.AccountID]
		if !ok {
			return port.ErrConflict
		}
		a.CashBalance = a.CashBalance.Add(o.Amount)
		st.accounts[o.AccountID] = a
		return nil

	case port.DebitCash:
		a, ok := st.accounts[o.AccountID]
		if !ok || a.CashBalance.LessThan(o.Amount) {
			return port.ErrConflict
		}
		a.CashBalance = a.CashBalance.Sub(o.Amount)
		st.accounts[o.AccountID] = a
		return nil

	case port.AdjustSupply:
		p, ok := st.properties[o.PropertyID]
		if !ok || p.TokensAvailable+o.Delta < 0 {
			return port.ErrConflict
		}
		p.TokensAvailable += o.Delta
		st.properties[o.PropertyID] = p
		return nil

	case port.CreateHolding:
		key := holdingKey(o.Holding.AccountID, o.Holding.PropertyID)
		if _, exists := st.holdings[key]; exists {
			return port.ErrConflict
		}
		st.holdings[key] = o.Holding
		return nil

	case port.AddToHolding:
		key := holdingKey(o.AccountID, o.PropertyID)
		h, ok := st.holdings[key]
		if !ok {
			return port.ErrConflict
		}
		h.Quantity += o.Quantity
		st.holdings[key] = h
		return nil

	case port.DeleteHolding:
		key := holdingKey(o.AccountID, o.PropertyID)
		if _, ok := st.holdings[key]; !ok {
			return port.ErrConflict
		}
		delete(st.holdings, key)
		return nil

	case port.MarkPayout:
		key := holdingKey(o.AccountID, o.PropertyID)
		h, ok := st.holdings[key]
		if !ok || h.LastPayoutAt.After(o.EligibleBefore) {
			return port.ErrConflict
		}
		h.LastPayoutAt = o.PaidAt
		st.holdings[key] = h
		return nil

	case port.AppendTransaction:
		t := o.Transaction
		st.transactions[t.AccountID] = append(st.transactions[t.AccountID], t)
		return nil

	case port.AppendSnapshot:
		snaps := st.snapshots[o.Snapshot.AccountID]
		if len(snaps) > 0 && snaps[len(snaps)-1].Timestamp.After(o.UnlessSince) {
			return port.ErrConflict
		}
		st.snapshots[o.Snapshot.AccountID] = append(snaps, o.Snapshot)
		return nil

	case port.CastVote:
		p, ok := st.proposals[o.ProposalID]
		if !ok {
			return port.ErrConflict
		}
		if o.Choice == domain.VoteNo {
			p.NoVotes++
		} else {
			p.YesVotes++
		}
		st.proposals[o.ProposalID] = p
		return nil

	default:
		return fmt.Errorf("unknown batch op %T", op)
	}
}

// MemoryCache implements port.CacheRepository in memory.
type MemoryCache struct {
	mu   sync.Mutex
	keys map[string]bool
	subs map[chan string]struct{}
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		keys: make(map[string]bool),
		subs: make(map[chan string]struct{}),
	}
}

func (c *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *MemoryCache) PublishAccountChanged(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs {
		select {
		case sub <- accountID:
		default: // slow subscriber drops the event
		}
	}
	return nil
}

func (c *MemoryCache) AccountChanges(ctx context.Context) (<-chan string, error) {
	sub := make(chan string, 16)
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
		close(sub)
	}()
	return sub, nil
}
