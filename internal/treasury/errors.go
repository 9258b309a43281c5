package treasury

import "errors"

var (
	ErrUnauthorized      = errors.New("caller is not the owner")
	ErrSaleInactive      = errors.New("We are not selling shares right now, please retry later")
	ErrIncorrectPayment  = errors.New("Incorrect payment amount, the change is 1 ETH x shares, example: 5 shares = 5 ETH")
	ErrInvalidShareCount = errors.New("share count must be positive")
	ErrShareOverflow     = errors.New("share balance would exceed the maximum holding")
	ErrPurchaseConflict  = errors.New("idempotency key was already used for a different purchase")
	ErrNoTransferer      = errors.New("no transferer configured for withdrawals")
	ErrNoFunds           = errors.New("there are no funds to withdraw")
	ErrReentrantCall     = errors.New("withdrawal already in progress")
	ErrOwnerMismatch     = errors.New("ledger is already owned by another account")
	ErrZeroOwner         = errors.New("owner must be a non-zero account")
	ErrUnbalanced        = errors.New("total funds do not match paid-in shares minus withdrawals")
)
