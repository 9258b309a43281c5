package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Topics the ledger and registry publish to
const (
	TopicSaleToggled     = "dao.sale_toggled"
	TopicSharesPurchased = "dao.shares_purchased"
	TopicFundsWithdrawn  = "dao.funds_withdrawn"
	TopicReferenceSet    = "dao.reference_set"
	TopicProposalCreated = "dao.proposal_created"
	TopicVoteCast        = "dao.vote_cast"
	TopicProposalClosed  = "dao.proposal_closed"
	TopicTokensMoved     = "dao.tokens_transferred"
)

type SaleToggled struct {
	EventID    string         `json:"event_id"`
	Owner      common.Address `json:"owner"`
	SaleActive bool           `json:"sale_active"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type SharesPurchased struct {
	EventID    string          `json:"event_id"`
	PurchaseID string          `json:"purchase_id"`
	Buyer      common.Address  `json:"buyer"`
	Shares     uint64          `json:"shares"`
	Value      decimal.Decimal `json:"value"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type FundsWithdrawn struct {
	EventID      string          `json:"event_id"`
	WithdrawalID string          `json:"withdrawal_id"`
	Recipient    common.Address  `json:"recipient"`
	Amount       decimal.Decimal `json:"amount"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type ReferenceSet struct {
	EventID    string         `json:"event_id"`
	Reference  common.Address `json:"reference"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type ProposalCreated struct {
	EventID     string         `json:"event_id"`
	ProposalID  uint64         `json:"proposal_id"`
	Proposer    common.Address `json:"proposer"`
	Description string         `json:"description"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type VoteCast struct {
	EventID    string         `json:"event_id"`
	ProposalID uint64         `json:"proposal_id"`
	Voter      common.Address `json:"voter"`
	Support    bool           `json:"support"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type ProposalClosed struct {
	EventID    string         `json:"event_id"`
	ProposalID uint64         `json:"proposal_id"`
	ClosedBy   common.Address `json:"closed_by"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// TokensTransferred is published after governance tokens move between accounts.
type TokensTransferred struct {
	EventID    string          `json:"event_id"`
	From       common.Address  `json:"from"`
	To         common.Address  `json:"to"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
