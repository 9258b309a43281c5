// Package token is the organization's fungible governance token. The whole
// supply is minted to the owner when the token is created and afterwards
// only moves between accounts.
package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models/events"
	"github.com/shopspring/decimal"
)

const (
	Name     = "Slunicoin"
	Symbol   = "SLC"
	Decimals = 18
)

// InitialSupply is 20 million whole tokens in base units.
var InitialSupply = decimal.New(20_000_000, Decimals)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("transfer amount exceeds balance")
	ErrZeroAccount         = errors.New("account must be non-zero")
)

// Token holds balances in base units.
type Token struct {
	owner     models.Account
	supply    decimal.Decimal
	publisher interfaces.EventPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	balances map[models.Account]decimal.Decimal
}

type Option func(*Token)

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(t *Token) { t.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Token) { t.logger = logger }
}

// New mints InitialSupply to owner.
func New(owner models.Account, opts ...Option) (*Token, error) {
	if models.IsZeroAccount(owner) {
		return nil, ErrZeroAccount
	}
	t := &Token{
		owner:    owner,
		supply:   InitialSupply,
		logger:   slog.Default(),
		balances: map[models.Account]decimal.Decimal{owner: InitialSupply},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Token) Name() string   { return Name }
func (t *Token) Symbol() string { return Symbol }

// TotalSupply never changes after New.
func (t *Token) TotalSupply() decimal.Decimal {
	return t.supply
}

func (t *Token) Owner() models.Account {
	return t.owner
}

func (t *Token) BalanceOf(account models.Account) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account]
}

// Transfer moves amount from one account to another. Either both balances
// change or neither does.
func (t *Token) Transfer(ctx context.Context, from, to models.Account, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if models.IsZeroAccount(to) {
		return ErrZeroAccount
	}

	t.mu.Lock()
	if t.balances[from].LessThan(amount) {
		t.mu.Unlock()
		return ErrInsufficientBalance
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	t.mu.Unlock()

	t.logger.Info("tokens transferred",
		slog.String("from", from.Hex()),
		slog.String("to", to.Hex()),
		slog.String("amount", amount.String()),
	)
	if t.publisher != nil {
		err := t.publisher.Publish(ctx, events.TopicTokensMoved, events.TokensTransferred{
			EventID:    uuid.New().String(),
			From:       from,
			To:         to,
			Amount:     amount,
			OccurredAt: time.Now(),
		})
		if err != nil {
			t.logger.Warn("failed to publish event", slog.String("topic", events.TopicTokensMoved), slog.String("error", err.Error()))
		}
	}
	return nil
}
