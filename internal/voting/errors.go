package voting

import "errors"

var (
	ErrUnauthorized  = errors.New("caller is not authorized")
	ErrNotFound      = errors.New("proposal not found")
	ErrClosed        = errors.New("proposal is closed")
	ErrAlreadyClosed = errors.New("proposal is already closed")
	ErrAlreadyVoted  = errors.New("account already voted on this proposal")
	ErrNoReference   = errors.New("DAO contract is not set")
	ErrNoResolver    = errors.New("membership resolver is required")
	ErrOwnerMismatch = errors.New("registry is already owned by another account")
	ErrZeroOwner     = errors.New("owner must be a non-zero account")
)
