package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// Account is an opaque caller identity. The zero value means "no account".
type Account = common.Address

// ParseAccount converts a hex string into an Account.
// It reports false when the string is not a 20-byte hex address.
func ParseAccount(s string) (Account, bool) {
	if !common.IsHexAddress(s) {
		return Account{}, false
	}
	return common.HexToAddress(s), true
}

// IsZeroAccount reports whether a is the unset address.
func IsZeroAccount(a Account) bool {
	return a == (Account{})
}
