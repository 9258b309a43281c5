// Package wallet tracks native-currency balances of accounts outside the
// treasury. Withdrawn funds land here.
package wallet

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Book holds external balances in wei.
type Book struct {
	mu       sync.Mutex
	balances map[models.Account]decimal.Decimal
}

// NewBook returns a Book in which every account starts at zero.
func NewBook() *Book {
	return &Book{balances: make(map[models.Account]decimal.Decimal)}
}

// Transfer credits amount to the recipient.
func (b *Book) Transfer(ctx context.Context, to models.Account, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "transfer")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}

// BalanceOf returns the wei credited to account so far.
func (b *Book) BalanceOf(account models.Account) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

var _ interfaces.ValueTransferer = (*Book)(nil)
