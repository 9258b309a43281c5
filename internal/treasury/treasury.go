package treasury

import (
	"context"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models/events"
	"github.com/shopspring/decimal"
)

// SharePrice is the cost of one share in wei (1 ether).
var SharePrice = decimal.New(1, 18)

// MaxShares is the largest balance one account may hold. It matches the
// signed 64-bit column the postgres store keeps holdings in.
const MaxShares uint64 = math.MaxInt64

// Cost returns the exact payment in wei required for shares.
func Cost(shares uint64) decimal.Decimal {
	return SharePrice.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(shares), 0))
}

// Ledger is the treasury: it sells shares for native currency and holds the
// paid-in funds until the owner withdraws them.
// It holds a reference to the storage layer and a mutex that serializes
// every state change.
type Ledger struct {
	store     interfaces.TreasuryStore
	owner     models.Account
	publisher interfaces.EventPublisher
	transfer  interfaces.ValueTransferer
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex  // serializes mutations
	withdrawing atomic.Bool // set while a withdrawal is talking to the transferer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets where committed changes are announced.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithTransferer sets how withdrawn funds reach the owner. A Ledger without
// one refuses to withdraw.
func WithTransferer(t interfaces.ValueTransferer) Option {
	return func(l *Ledger) { l.transfer = t }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger owned by owner. If the store already holds a ledger
// the persisted owner wins, and a different owner is rejected.
func New(ctx context.Context, store interfaces.TreasuryStore, owner models.Account, opts ...Option) (*Ledger, error) {
	if models.IsZeroAccount(owner) {
		return nil, ErrZeroOwner
	}

	l := &Ledger{
		store:  store,
		owner:  owner,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	state, err := store.Bootstrap(ctx, models.TreasuryState{
		Owner:      owner,
		SaleActive: true,
		TotalFunds: decimal.Zero,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap treasury")
	}
	if state.Owner != owner {
		return nil, errors.Wrapf(ErrOwnerMismatch, "stored owner %s", state.Owner.Hex())
	}
	return l, nil
}

// Owner returns the account that controls sale state and withdrawals.
func (l *Ledger) Owner() models.Account {
	return l.owner
}

// IsSaleActive reports whether BuyShares currently accepts purchases.
func (l *Ledger) IsSaleActive(ctx context.Context) (bool, error) {
	state, err := l.store.LoadState(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load treasury state")
	}
	return state.SaleActive, nil
}

// ToggleSaleState flips whether shares are on sale and returns the new value.
func (l *Ledger) ToggleSaleState(ctx context.Context, caller models.Account) (bool, error) {
	if caller != l.owner {
		return false, ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadState(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load treasury state")
	}
	active := !state.SaleActive
	if err := l.store.SetSaleActive(ctx, active); err != nil {
		return false, errors.Wrap(err, "save sale state")
	}

	l.logger.Info("sale state toggled", slog.Bool("sale_active", active))
	l.publish(ctx, events.TopicSaleToggled, events.SaleToggled{
		EventID:    uuid.New().String(),
		Owner:      caller,
		SaleActive: active,
		OccurredAt: l.now(),
	})
	return active, nil
}

// BuyShares credits purchase.Shares to the buyer when the sale is open and
// the attached value pays exactly SharePrice per share.
// A purchase whose idempotency key was already recorded is accepted without
// applying it again, as long as it names the same buyer, shares and value.
func (l *Ledger) BuyShares(ctx context.Context, purchase models.SharePurchase) error {
	if purchase.Shares == 0 {
		return ErrInvalidShareCount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Idempotency check
	if purchase.IdempotencyKey != "" {
		recorded, err := l.store.FindPurchase(ctx, purchase.IdempotencyKey)
		switch {
		case err == nil:
			if recorded.Buyer != purchase.Buyer || recorded.Shares != purchase.Shares || !recorded.Value.Equal(purchase.Value) {
				return ErrPurchaseConflict
			}
			l.logger.Debug("purchase replayed", slog.String("idempotency_key", purchase.IdempotencyKey))
			return nil
		case !errors.Is(err, interfaces.ErrRecordNotFound):
			return errors.Wrap(err, "check purchase")
		}
	}

	state, err := l.store.LoadState(ctx)
	if err != nil {
		return errors.Wrap(err, "load treasury state")
	}
	if !state.SaleActive {
		return ErrSaleInactive
	}

	if !purchase.Value.Equal(Cost(purchase.Shares)) {
		return ErrIncorrectPayment
	}

	held, err := l.store.SharesOwned(ctx, purchase.Buyer)
	if err != nil {
		return errors.Wrap(err, "load shares")
	}
	if held > MaxShares || purchase.Shares > MaxShares-held {
		return ErrShareOverflow
	}

	if purchase.ID == "" {
		purchase.ID = uuid.New().String()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = l.now()
	}

	// The store applies the holding and the funds in one step
	if err := l.store.SavePurchase(ctx, purchase); err != nil {
		return errors.Wrap(err, "save purchase")
	}

	l.logger.Info("shares purchased",
		slog.String("buyer", purchase.Buyer.Hex()),
		slog.Uint64("shares", purchase.Shares),
		slog.String("value", purchase.Value.String()),
	)
	l.publish(ctx, events.TopicSharesPurchased, events.SharesPurchased{
		EventID:    uuid.New().String(),
		PurchaseID: purchase.ID,
		Buyer:      purchase.Buyer,
		Shares:     purchase.Shares,
		Value:      purchase.Value,
		OccurredAt: purchase.CreatedAt,
	})
	return nil
}

// IsMember reports whether account holds at least one share.
func (l *Ledger) IsMember(ctx context.Context, account models.Account) (bool, error) {
	shares, err := l.SharesOwned(ctx, account)
	if err != nil {
		return false, err
	}
	return shares > 0, nil
}

// SharesOwned returns the share balance of account, zero if it never bought.
func (l *Ledger) SharesOwned(ctx context.Context, account models.Account) (uint64, error) {
	shares, err := l.store.SharesOwned(ctx, account)
	if err != nil {
		return 0, errors.Wrap(err, "load shares")
	}
	return shares, nil
}

// Holdings lists every account with a non-zero share balance.
func (l *Ledger) Holdings(ctx context.Context) ([]models.ShareHolding, error) {
	holdings, err := l.store.Holdings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load holdings")
	}
	return holdings, nil
}

// WithdrawFunds sends every wei held by the ledger to the owner.
//
// The total is zeroed and the withdrawal recorded before the transferer is
// called, and the ledger refuses a second withdrawal while a transfer is in
// flight. If the transfer fails the withdrawal is reverted.
func (l *Ledger) WithdrawFunds(ctx context.Context, caller models.Account) (models.Withdrawal, error) {
	if caller != l.owner {
		return models.Withdrawal{}, ErrUnauthorized
	}
	if l.transfer == nil {
		return models.Withdrawal{}, ErrNoTransferer
	}
	if !l.withdrawing.CompareAndSwap(false, true) {
		return models.Withdrawal{}, ErrReentrantCall
	}
	defer l.withdrawing.Store(false)

	withdrawal, err := l.debitFunds(ctx)
	if err != nil {
		return models.Withdrawal{}, err
	}

	if err := l.transfer.Transfer(ctx, withdrawal.Recipient, withdrawal.Amount); err != nil {
		if rerr := l.revertWithdrawal(ctx, withdrawal); rerr != nil {
			l.logger.Error("failed to revert withdrawal",
				slog.String("withdrawal_id", withdrawal.ID),
				slog.String("error", rerr.Error()),
			)
			return models.Withdrawal{}, errors.Wrap(rerr, "revert withdrawal")
		}
		return models.Withdrawal{}, errors.Wrap(err, "transfer funds")
	}

	l.logger.Info("funds withdrawn",
		slog.String("recipient", withdrawal.Recipient.Hex()),
		slog.String("amount", withdrawal.Amount.String()),
	)
	l.publish(ctx, events.TopicFundsWithdrawn, events.FundsWithdrawn{
		EventID:      uuid.New().String(),
		WithdrawalID: withdrawal.ID,
		Recipient:    withdrawal.Recipient,
		Amount:       withdrawal.Amount,
		OccurredAt:   withdrawal.CreatedAt,
	})
	return withdrawal, nil
}

func (l *Ledger) debitFunds(ctx context.Context) (models.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadState(ctx)
	if err != nil {
		return models.Withdrawal{}, errors.Wrap(err, "load treasury state")
	}
	if !state.TotalFunds.IsPositive() {
		return models.Withdrawal{}, ErrNoFunds
	}

	withdrawal := models.Withdrawal{
		ID:        uuid.New().String(),
		Recipient: l.owner,
		Amount:    state.TotalFunds,
		CreatedAt: l.now(),
	}
	if err := l.store.SaveWithdrawal(ctx, withdrawal); err != nil {
		return models.Withdrawal{}, errors.Wrap(err, "save withdrawal")
	}
	return withdrawal, nil
}

func (l *Ledger) revertWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.RevertWithdrawal(ctx, withdrawal)
}

// CheckContractEthBalance returns the wei currently held by the ledger.
func (l *Ledger) CheckContractEthBalance(ctx context.Context) (decimal.Decimal, error) {
	state, err := l.store.LoadState(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "load treasury state")
	}
	return state.TotalFunds, nil
}

// Audit checks that the held funds equal everything paid in for shares minus
// everything withdrawn.
func (l *Ledger) Audit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	holdings, err := l.store.Holdings(ctx)
	if err != nil {
		return errors.Wrap(err, "load holdings")
	}
	withdrawn, err := l.store.TotalWithdrawn(ctx)
	if err != nil {
		return errors.Wrap(err, "load withdrawals")
	}
	state, err := l.store.LoadState(ctx)
	if err != nil {
		return errors.Wrap(err, "load treasury state")
	}

	paidIn := decimal.Zero
	for _, h := range holdings {
		paidIn = paidIn.Add(Cost(h.Shares))
	}
	if expected := paidIn.Sub(withdrawn); !expected.Equal(state.TotalFunds) {
		return errors.Wrapf(ErrUnbalanced, "expected %s, held %s", expected, state.TotalFunds)
	}
	return nil
}

func (l *Ledger) publish(ctx context.Context, topic string, event any) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, topic, event); err != nil {
		l.logger.Warn("failed to publish event", slog.String("topic", topic), slog.String("error", err.Error()))
	}
}
