package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
)

// ErrRecordNotFound is returned by stores when a keyed record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// ProposalStore persists a proposal registry.
type ProposalStore interface {
	Bootstrap(ctx context.Context, initial models.RegistryState) (models.RegistryState, error)
	LoadState(ctx context.Context) (models.RegistryState, error)
	SetDAOReference(ctx context.Context, reference models.Account) error

	// CreateProposal assigns the next proposal id, stores the proposal and
	// returns it with the id filled in.
	CreateProposal(ctx context.Context, proposal models.Proposal) (models.Proposal, error)
	GetProposal(ctx context.Context, id uint64) (models.Proposal, error)
	ListProposals(ctx context.Context) ([]models.Proposal, error)

	// RecordVote appends the vote and increments the matching tally.
	RecordVote(ctx context.Context, vote models.Vote) error
	HasVoted(ctx context.Context, proposalID uint64, voter models.Account) (bool, error)
	CloseProposal(ctx context.Context, proposal models.Proposal) error
}
