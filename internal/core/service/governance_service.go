package service

import (
	"context"
	"fmt"

	"github.com/nhatm/estate-ledger/internal/core/domain"
	"github.com/nhatm/estate-ledger/internal/port"
)

// GovernanceService records votes on proposals. A voter must hold a non-zero
// position in the proposal's property. Each call counts as exactly one vote
// regardless of quantity held, and no record of who voted is kept, so the
// same account may vote repeatedly.
type GovernanceService struct {
	store port.LedgerStore
}

func NewGovernanceService(store port.LedgerStore) *GovernanceService {
	return &GovernanceService{store: store}
}

func (s *GovernanceService) Vote(ctx context.Context, accountID, proposalID string, choice domain.VoteChoice) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	return withConflictRetry(ctx, func() error {
		proposal, err := s.store.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("read proposal: %w", err)
		}
		if proposal == nil {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
		}

		holding, err := s.store.GetHolding(ctx, accountID, proposal.PropertyID)
		if err != nil {
			return fmt.Errorf("read holding: %w", err)
		}
		if holding == nil || holding.Quantity == 0 {
			return ErrNotEligible
		}

		return s.store.Apply(ctx, port.CastVote{ProposalID: proposalID, Choice: choice})
	})
}

// Proposals lists all open proposals.
func (s *GovernanceService) Proposals(ctx context.Context) ([]domain.Proposal, error) {
	return s.store.ListProposals(ctx)
}
