package interfaces

import (
	"context"

	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// TreasuryStore persists the treasury ledger. Every mutating method is
// all-or-nothing: it either fully applies or leaves the store untouched.
type TreasuryStore interface {
	// Bootstrap stores initial if no state exists yet and returns the stored state.
	Bootstrap(ctx context.Context, initial models.TreasuryState) (models.TreasuryState, error)
	LoadState(ctx context.Context) (models.TreasuryState, error)
	SetSaleActive(ctx context.Context, active bool) error

	// FindPurchase returns the purchase recorded under idempotencyKey, or
	// ErrRecordNotFound.
	FindPurchase(ctx context.Context, idempotencyKey string) (models.SharePurchase, error)
	// SavePurchase records the purchase, credits the buyer's holding and
	// adds the payment to the total funds.
	SavePurchase(ctx context.Context, purchase models.SharePurchase) error
	SharesOwned(ctx context.Context, account models.Account) (uint64, error)
	Holdings(ctx context.Context) ([]models.ShareHolding, error)

	// SaveWithdrawal records the withdrawal and zeroes the total funds.
	SaveWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error
	// RevertWithdrawal removes the withdrawal and adds its amount back.
	RevertWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error
	TotalWithdrawn(ctx context.Context) (decimal.Decimal, error)
}
