// Package directory keeps the addresses of deployed organizations so a
// proposal registry can reach their membership check by address alone.
package directory

import (
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
)

// Directory maps addresses to the membership check of the organization
// deployed there.
type Directory struct {
	mu      sync.RWMutex
	entries map[models.Account]interfaces.MembershipChecker
	nonces  map[models.Account]uint64
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{
		entries: make(map[models.Account]interfaces.MembershipChecker),
		nonces:  make(map[models.Account]uint64),
	}
}

// Deploy assigns checker the next address derived from deployer and its
// deployment count, the same way contract addresses are derived on chain.
func (d *Directory) Deploy(deployer models.Account, checker interfaces.MembershipChecker) models.Account {
	d.mu.Lock()
	defer d.mu.Unlock()

	nonce := d.nonces[deployer]
	d.nonces[deployer] = nonce + 1

	address := crypto.CreateAddress(deployer, nonce)
	d.entries[address] = checker
	return address
}

// Register places checker at a fixed address, replacing anything there.
func (d *Directory) Register(address models.Account, checker interfaces.MembershipChecker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[address] = checker
}

// Resolve returns the membership check at address, if one was deployed or
// registered there.
func (d *Directory) Resolve(address models.Account) (interfaces.MembershipChecker, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	checker, ok := d.entries[address]
	return checker, ok
}

var _ interfaces.MembershipResolver = (*Directory)(nil)
