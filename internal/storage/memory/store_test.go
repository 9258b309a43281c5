package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestTreasuryStoreNeedsBootstrap(t *testing.T) {
	s := NewMemoryTreasuryStore()
	_, err := s.LoadState(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.SetSaleActive(context.Background(), false))
}

func TestTreasuryBootstrapKeepsFirstState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTreasuryStore()

	first, err := s.Bootstrap(ctx, models.TreasuryState{Owner: owner, SaleActive: true})
	require.NoError(t, err)
	second, err := s.Bootstrap(ctx, models.TreasuryState{Owner: alice})
	require.NoError(t, err)

	assert.Equal(t, owner, first.Owner)
	assert.Equal(t, owner, second.Owner)
	assert.True(t, second.SaleActive)
}

func TestSavePurchaseAndWithdrawal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTreasuryStore()
	_, err := s.Bootstrap(ctx, models.TreasuryState{Owner: owner, SaleActive: true})
	require.NoError(t, err)

	require.NoError(t, s.SavePurchase(ctx, models.SharePurchase{
		ID: "p1", IdempotencyKey: "k1", Buyer: alice, Shares: 2, Value: decimal.NewFromInt(20), CreatedAt: time.Now(),
	}))

	found, err := s.FindPurchase(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, alice, found.Buyer)

	_, err = s.FindPurchase(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	shares, err := s.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), shares)

	w := models.Withdrawal{ID: "w1", Recipient: owner, Amount: decimal.NewFromInt(20)}
	require.NoError(t, s.SaveWithdrawal(ctx, w))

	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, state.TotalFunds.IsZero())

	withdrawn, err := s.TotalWithdrawn(ctx)
	require.NoError(t, err)
	assert.True(t, withdrawn.Equal(decimal.NewFromInt(20)))

	require.NoError(t, s.RevertWithdrawal(ctx, w))
	state, err = s.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, state.TotalFunds.Equal(decimal.NewFromInt(20)))

	assert.ErrorIs(t, s.RevertWithdrawal(ctx, w), interfaces.ErrRecordNotFound)
}

func TestProposalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProposalStore()

	state, err := s.Bootstrap(ctx, models.RegistryState{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.NextProposalID)

	p, err := s.CreateProposal(ctx, models.Proposal{Description: "a", Proposer: alice, Active: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.ID)

	require.NoError(t, s.RecordVote(ctx, models.Vote{ProposalID: 1, Voter: alice, Support: false}))
	voted, err := s.HasVoted(ctx, 1, alice)
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = s.HasVoted(ctx, 1, owner)
	require.NoError(t, err)
	assert.False(t, voted)

	closedAt := time.Now()
	p.ClosedAt = &closedAt
	require.NoError(t, s.CloseProposal(ctx, p))

	got, err := s.GetProposal(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, uint64(1), got.VotesCon)

	_, err = s.GetProposal(ctx, 0)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	_, err = s.GetProposal(ctx, 2)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
	assert.ErrorIs(t, s.RecordVote(ctx, models.Vote{ProposalID: 9}), interfaces.ErrRecordNotFound)
}
