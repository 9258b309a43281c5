package directory

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMembers map[models.Account]bool

func (s staticMembers) IsMember(ctx context.Context, account models.Account) (bool, error) {
	return s[account], nil
}

var deployer = common.HexToAddress("0x0000000000000000000000000000000000000001")

func TestDeployDerivesAddresses(t *testing.T) {
	d := New()

	first := d.Deploy(deployer, staticMembers{})
	second := d.Deploy(deployer, staticMembers{})

	assert.Equal(t, crypto.CreateAddress(deployer, 0), first)
	assert.Equal(t, crypto.CreateAddress(deployer, 1), second)
	assert.NotEqual(t, first, second)
}

func TestResolve(t *testing.T) {
	d := New()
	member := common.HexToAddress("0x0000000000000000000000000000000000000002")
	address := d.Deploy(deployer, staticMembers{member: true})

	checker, ok := d.Resolve(address)
	require.True(t, ok)
	isMember, err := checker.IsMember(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, isMember)

	_, ok = d.Resolve(deployer)
	assert.False(t, ok)
}

func TestRegisterReplaces(t *testing.T) {
	d := New()
	address := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	account := common.HexToAddress("0x0000000000000000000000000000000000000002")

	d.Register(address, staticMembers{})
	d.Register(address, staticMembers{account: true})

	checker, ok := d.Resolve(address)
	require.True(t, ok)
	isMember, err := checker.IsMember(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, isMember)
}
