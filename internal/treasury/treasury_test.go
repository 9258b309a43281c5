package treasury

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/events/memory"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models/events"
	store "github.com/sheikh-saqib/dao-treasury-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000002")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000003")

	halfEther = decimal.New(5, 17)
)

func newLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	l, err := New(context.Background(), store.NewMemoryTreasuryStore(), owner, opts...)
	require.NoError(t, err)
	return l
}

func buy(account models.Account, shares uint64, value decimal.Decimal) models.SharePurchase {
	return models.SharePurchase{Buyer: account, Shares: shares, Value: value}
}

func TestNewSetsOwner(t *testing.T) {
	l := newLedger(t)
	assert.Equal(t, owner, l.Owner())

	active, err := l.IsSaleActive(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
}

func TestNewRejectsZeroOwner(t *testing.T) {
	_, err := New(context.Background(), store.NewMemoryTreasuryStore(), models.Account{})
	assert.ErrorIs(t, err, ErrZeroOwner)
}

func TestNewKeepsPersistedOwner(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryTreasuryStore()

	_, err := New(ctx, s, owner)
	require.NoError(t, err)

	_, err = New(ctx, s, owner)
	assert.NoError(t, err)

	_, err = New(ctx, s, alice)
	assert.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestToggleSaleState(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	active, err := l.ToggleSaleState(ctx, owner)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = l.ToggleSaleState(ctx, owner)
	require.NoError(t, err)
	assert.True(t, active)

	stored, err := l.IsSaleActive(ctx)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestToggleSaleStateRequiresOwner(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.ToggleSaleState(ctx, alice)
	assert.ErrorIs(t, err, ErrUnauthorized)

	active, err := l.IsSaleActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestBuySharesMakesMember(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	member, err := l.IsMember(ctx, alice)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, l.BuyShares(ctx, buy(alice, 1, SharePrice)))

	member, err = l.IsMember(ctx, alice)
	require.NoError(t, err)
	assert.True(t, member)

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), shares)
}

func TestBuySharesAccumulates(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.BuyShares(ctx, buy(alice, 2, Cost(2))))
	require.NoError(t, l.BuyShares(ctx, buy(alice, 5, Cost(5))))
	require.NoError(t, l.BuyShares(ctx, buy(bob, 1, Cost(1))))

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), shares)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(8)), "balance %s", balance)

	holdings, err := l.Holdings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ShareHolding{
		{Account: alice, Shares: 7},
		{Account: bob, Shares: 1},
	}, holdings)
}

func TestBuySharesWhileSaleInactive(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.ToggleSaleState(ctx, owner)
	require.NoError(t, err)

	err = l.BuyShares(ctx, buy(alice, 1, SharePrice))
	require.ErrorIs(t, err, ErrSaleInactive)
	assert.EqualError(t, err, "We are not selling shares right now, please retry later")

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, shares)
}

func TestBuySharesIncorrectPayment(t *testing.T) {
	tests := []struct {
		name   string
		shares uint64
		value  decimal.Decimal
	}{
		{"underpaid", 1, halfEther},
		{"overpaid", 1, Cost(2)},
		{"nothing attached", 3, decimal.Zero},
		{"price of fewer shares", 10, SharePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := newLedger(t)

			err := l.BuyShares(ctx, buy(alice, tt.shares, tt.value))
			require.ErrorIs(t, err, ErrIncorrectPayment)
			assert.EqualError(t, err, "Incorrect payment amount, the change is 1 ETH x shares, example: 5 shares = 5 ETH")

			shares, err := l.SharesOwned(ctx, alice)
			require.NoError(t, err)
			assert.Zero(t, shares)

			balance, err := l.CheckContractEthBalance(ctx)
			require.NoError(t, err)
			assert.True(t, balance.IsZero())
		})
	}
}

func TestBuySharesRejectsZeroShares(t *testing.T) {
	l := newLedger(t)
	err := l.BuyShares(context.Background(), buy(alice, 0, decimal.Zero))
	assert.ErrorIs(t, err, ErrInvalidShareCount)
}

func TestMemberKeepsSharesAfterRejectedPurchase(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.BuyShares(ctx, buy(alice, 1, SharePrice)))
	assert.ErrorIs(t, l.BuyShares(ctx, buy(alice, 1, halfEther)), ErrIncorrectPayment)

	member, err := l.IsMember(ctx, alice)
	require.NoError(t, err)
	assert.True(t, member)

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), shares)
}

func TestBuySharesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	purchase := buy(alice, 3, Cost(3))
	purchase.IdempotencyKey = "order-1"

	require.NoError(t, l.BuyShares(ctx, purchase))
	require.NoError(t, l.BuyShares(ctx, purchase))

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), shares)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(3)))
}

func TestBuySharesIdempotencyKeyMismatch(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	purchase := buy(alice, 3, Cost(3))
	purchase.IdempotencyKey = "order-1"
	require.NoError(t, l.BuyShares(ctx, purchase))

	tests := []struct {
		name     string
		purchase models.SharePurchase
	}{
		{"other buyer", buy(bob, 3, Cost(3))},
		{"other share count", buy(alice, 2, Cost(2))},
		{"other value", buy(alice, 3, Cost(4))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replay := tt.purchase
			replay.IdempotencyKey = "order-1"
			assert.ErrorIs(t, l.BuyShares(ctx, replay), ErrPurchaseConflict)
		})
	}

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), shares)
	bobShares, err := l.SharesOwned(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, bobShares)
}

func TestBuySharesRejectsBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	// more than one account may ever hold
	err := l.BuyShares(ctx, buy(alice, MaxShares+1, Cost(MaxShares+1)))
	assert.ErrorIs(t, err, ErrShareOverflow)

	require.NoError(t, l.BuyShares(ctx, buy(alice, MaxShares, Cost(MaxShares))))
	err = l.BuyShares(ctx, buy(alice, 1, SharePrice))
	assert.ErrorIs(t, err, ErrShareOverflow)

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, MaxShares, shares)

	member, err := l.IsMember(ctx, alice)
	require.NoError(t, err)
	assert.True(t, member)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(MaxShares)))
	assert.NoError(t, l.Audit(ctx))
}

func TestConcurrentPurchases(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	const buyers = 50
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.BuyShares(ctx, buy(alice, 1, SharePrice)))
		}()
	}
	wg.Wait()

	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(buyers), shares)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(buyers)))
	assert.NoError(t, l.Audit(ctx))
}

func TestWithdrawFunds(t *testing.T) {
	ctx := context.Background()
	book := wallet.NewBook()
	l := newLedger(t, WithTransferer(book))

	require.NoError(t, l.BuyShares(ctx, buy(alice, 10, Cost(10))))
	before := book.BalanceOf(owner)

	withdrawal, err := l.WithdrawFunds(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, withdrawal.Recipient)
	assert.True(t, withdrawal.Amount.Equal(Cost(10)))

	after := book.BalanceOf(owner)
	assert.True(t, after.GreaterThan(before))
	assert.True(t, after.Sub(before).Equal(Cost(10)))

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// shares survive a withdrawal
	shares, err := l.SharesOwned(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), shares)
	assert.NoError(t, l.Audit(ctx))
}

func TestWithdrawFundsRequiresOwner(t *testing.T) {
	ctx := context.Background()
	book := wallet.NewBook()
	l := newLedger(t, WithTransferer(book))

	require.NoError(t, l.BuyShares(ctx, buy(alice, 2, Cost(2))))

	_, err := l.WithdrawFunds(ctx, alice)
	assert.ErrorIs(t, err, ErrUnauthorized)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(2)))
	assert.True(t, book.BalanceOf(alice).IsZero())
}

func TestWithdrawFundsWithoutTransferer(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.BuyShares(ctx, buy(alice, 2, Cost(2))))

	_, err := l.WithdrawFunds(ctx, owner)
	assert.ErrorIs(t, err, ErrNoTransferer)

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(2)))
	assert.NoError(t, l.Audit(ctx))
}

func TestWithdrawFundsWhenEmpty(t *testing.T) {
	l := newLedger(t, WithTransferer(wallet.NewBook()))
	_, err := l.WithdrawFunds(context.Background(), owner)
	assert.ErrorIs(t, err, ErrNoFunds)
}

// reentrantTransferer calls back into the ledger before paying out, the way a
// malicious recipient would.
type reentrantTransferer struct {
	ledger   *Ledger
	book     *wallet.Book
	innerErr error
	calls    int
}

func (r *reentrantTransferer) Transfer(ctx context.Context, to models.Account, amount decimal.Decimal) error {
	r.calls++
	if r.calls == 1 {
		_, r.innerErr = r.ledger.WithdrawFunds(ctx, to)
	}
	return r.book.Transfer(ctx, to, amount)
}

func TestWithdrawFundsRejectsReentrantCall(t *testing.T) {
	ctx := context.Background()
	rt := &reentrantTransferer{book: wallet.NewBook()}
	l := newLedger(t, WithTransferer(rt))
	rt.ledger = l

	require.NoError(t, l.BuyShares(ctx, buy(alice, 4, Cost(4))))

	_, err := l.WithdrawFunds(ctx, owner)
	require.NoError(t, err)

	assert.ErrorIs(t, rt.innerErr, ErrReentrantCall)
	assert.Equal(t, 1, rt.calls)
	assert.True(t, rt.book.BalanceOf(owner).Equal(Cost(4)))

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

type failingTransferer struct{}

func (failingTransferer) Transfer(ctx context.Context, to models.Account, amount decimal.Decimal) error {
	return errors.New("recipient rejected payment")
}

func TestWithdrawFundsRevertsFailedTransfer(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, WithTransferer(failingTransferer{}))

	require.NoError(t, l.BuyShares(ctx, buy(alice, 3, Cost(3))))

	_, err := l.WithdrawFunds(ctx, owner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient rejected payment")

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(Cost(3)))
	assert.NoError(t, l.Audit(ctx))

	// the guard is released after a failed attempt
	_, err = l.WithdrawFunds(ctx, owner)
	assert.NotErrorIs(t, err, ErrReentrantCall)
}

func TestCheckContractEthBalance(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.BuyShares(ctx, buy(alice, 1, SharePrice)))

	balance, err := l.CheckContractEthBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()
	rec := memory.NewRecorder()
	l := newLedger(t, WithPublisher(rec), WithTransferer(wallet.NewBook()))

	require.NoError(t, l.BuyShares(ctx, buy(alice, 1, SharePrice)))
	_, err := l.ToggleSaleState(ctx, owner)
	require.NoError(t, err)
	_, err = l.WithdrawFunds(ctx, owner)
	require.NoError(t, err)

	// rejected calls publish nothing
	assert.Error(t, l.BuyShares(ctx, buy(bob, 1, SharePrice)))

	assert.Equal(t, []string{
		events.TopicSharesPurchased,
		events.TopicSaleToggled,
		events.TopicFundsWithdrawn,
	}, rec.Topics())

	purchased, ok := rec.Records()[0].Event.(events.SharesPurchased)
	require.True(t, ok)
	assert.Equal(t, alice, purchased.Buyer)
	assert.Equal(t, uint64(1), purchased.Shares)
}
