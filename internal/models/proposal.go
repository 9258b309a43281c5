package models

import "time"

// Proposal is a decision item open for pro/con voting.
// Description and Proposer never change after creation; Active goes from
// true to false exactly once.
type Proposal struct {
	ID          uint64     `json:"id"`
	Description string     `json:"description"`
	Proposer    Account    `json:"proposer"`
	Active      bool       `json:"active"`
	VotesPro    uint64     `json:"votesPro"`
	VotesCon    uint64     `json:"votesCon"`
	CreatedAt   time.Time  `json:"createdAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// Vote is one cast ballot, kept as history next to the proposal tallies
type Vote struct {
	ProposalID uint64
	Voter      Account
	Support    bool
	CastAt     time.Time
}

// RegistryState is the global state of a proposal registry
type RegistryState struct {
	Owner          Account
	DAOReference   Account // zero when unset
	NextProposalID uint64
}
