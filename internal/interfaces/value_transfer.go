package interfaces

import (
	"context"

	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ValueTransferer moves native currency out of the ledger to an external account.
type ValueTransferer interface {
	Transfer(ctx context.Context, to models.Account, amount decimal.Decimal) error
}
