package interfaces

import (
	"context"

	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
)

// MembershipChecker answers whether an account is a member of an organization.
type MembershipChecker interface {
	IsMember(ctx context.Context, account models.Account) (bool, error)
}

// MembershipResolver maps an address to the membership capability deployed
// there, if any.
type MembershipResolver interface {
	Resolve(address models.Account) (MembershipChecker, bool)
}
