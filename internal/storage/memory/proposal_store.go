package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
)

// MemoryProposalStore is an in-memory implementation of interfaces.ProposalStore.
type MemoryProposalStore struct {
	mu        sync.Mutex
	state     *models.RegistryState
	proposals []models.Proposal // index i holds proposal id i+1
	votes     []models.Vote
}

// NewMemoryProposalStore creates and returns a new MemoryProposalStore instance
func NewMemoryProposalStore() *MemoryProposalStore {
	return &MemoryProposalStore{}
}

var errRegistryNotBootstrapped = errors.New("proposal store is not bootstrapped")

func (m *MemoryProposalStore) Bootstrap(ctx context.Context, initial models.RegistryState) (models.RegistryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		state := initial
		if state.NextProposalID == 0 {
			state.NextProposalID = 1
		}
		m.state = &state
	}
	return *m.state, nil
}

func (m *MemoryProposalStore) LoadState(ctx context.Context) (models.RegistryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return models.RegistryState{}, errRegistryNotBootstrapped
	}
	return *m.state, nil
}

func (m *MemoryProposalStore) SetDAOReference(ctx context.Context, reference models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return errRegistryNotBootstrapped
	}
	m.state.DAOReference = reference
	return nil
}

func (m *MemoryProposalStore) CreateProposal(ctx context.Context, proposal models.Proposal) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return models.Proposal{}, errRegistryNotBootstrapped
	}
	proposal.ID = m.state.NextProposalID
	m.state.NextProposalID++
	m.proposals = append(m.proposals, proposal)
	return proposal, nil
}

func (m *MemoryProposalStore) GetProposal(ctx context.Context, id uint64) (models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lookup(id)
	if !ok {
		return models.Proposal{}, interfaces.ErrRecordNotFound
	}
	return *p, nil
}

// ListProposals returns a copy of every proposal, ordered by id.
func (m *MemoryProposalStore) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.Proposal, len(m.proposals))
	copy(copied, m.proposals)
	return copied, nil
}

func (m *MemoryProposalStore) RecordVote(ctx context.Context, vote models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lookup(vote.ProposalID)
	if !ok {
		return interfaces.ErrRecordNotFound
	}
	if vote.Support {
		p.VotesPro++
	} else {
		p.VotesCon++
	}
	m.votes = append(m.votes, vote)
	return nil
}

func (m *MemoryProposalStore) HasVoted(ctx context.Context, proposalID uint64, voter models.Account) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.votes {
		if v.ProposalID == proposalID && v.Voter == voter {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryProposalStore) CloseProposal(ctx context.Context, proposal models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.lookup(proposal.ID)
	if !ok {
		return interfaces.ErrRecordNotFound
	}
	p.Active = false
	p.ClosedAt = proposal.ClosedAt
	return nil
}

// lookup must be called with m.mu held.
func (m *MemoryProposalStore) lookup(id uint64) (*models.Proposal, bool) {
	if id == 0 || id > uint64(len(m.proposals)) {
		return nil, false
	}
	return &m.proposals[id-1], true
}

var _ interfaces.ProposalStore = (*MemoryProposalStore)(nil)
