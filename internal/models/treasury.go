package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreasuryState is the global, single-row state of a treasury ledger
type TreasuryState struct {
	Owner      Account         // set once at bootstrap, never changes
	SaleActive bool            // gates share purchases
	TotalFunds decimal.Decimal // wei currently held by the ledger
}

// ShareHolding is the number of shares held by one account
type ShareHolding struct {
	Account Account
	Shares  uint64
}

// SharePurchase represents an intent to buy shares with an attached payment
type SharePurchase struct {
	ID             string
	IdempotencyKey string
	Buyer          Account
	Shares         uint64
	Value          decimal.Decimal // attached payment in wei
	CreatedAt      time.Time
}

// Withdrawal records funds moved from the ledger to the owner
type Withdrawal struct {
	ID        string
	Recipient Account
	Amount    decimal.Decimal // wei
	CreatedAt time.Time
}
