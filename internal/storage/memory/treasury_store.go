package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"sort"
	"sync" // standard Go package for concurrency primitives like Mutex

	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces" // interface TreasuryStore
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryTreasuryStore is an in-memory implementation of interfaces.TreasuryStore.
// It is thread-safe; every method runs under one mutex, so each write is atomic.
type MemoryTreasuryStore struct {
	mu          sync.Mutex
	state       *models.TreasuryState           // nil until Bootstrap
	shares      map[models.Account]uint64       // share balance per account
	purchases   map[string]models.SharePurchase // keyed by idempotency key
	withdrawals map[string]models.Withdrawal    // keyed by withdrawal id
}

// NewMemoryTreasuryStore creates and returns a new MemoryTreasuryStore instance
func NewMemoryTreasuryStore() *MemoryTreasuryStore {
	return &MemoryTreasuryStore{
		shares:      make(map[models.Account]uint64),
		purchases:   make(map[string]models.SharePurchase),
		withdrawals: make(map[string]models.Withdrawal),
	}
}

var errNotBootstrapped = errors.New("treasury store is not bootstrapped")

func (m *MemoryTreasuryStore) Bootstrap(ctx context.Context, initial models.TreasuryState) (models.TreasuryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		state := initial
		m.state = &state
	}
	return *m.state, nil
}

func (m *MemoryTreasuryStore) LoadState(ctx context.Context) (models.TreasuryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return models.TreasuryState{}, errNotBootstrapped
	}
	return *m.state, nil
}

func (m *MemoryTreasuryStore) SetSaleActive(ctx context.Context, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return errNotBootstrapped
	}
	m.state.SaleActive = active
	return nil
}

func (m *MemoryTreasuryStore) FindPurchase(ctx context.Context, idempotencyKey string) (models.SharePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purchase, ok := m.purchases[idempotencyKey]
	if !ok {
		return models.SharePurchase{}, interfaces.ErrRecordNotFound
	}
	return purchase, nil
}

// SavePurchase records the purchase, the new holding and the new total together.
func (m *MemoryTreasuryStore) SavePurchase(ctx context.Context, purchase models.SharePurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return errNotBootstrapped
	}

	key := purchase.IdempotencyKey
	if key == "" {
		key = purchase.ID
	}
	m.purchases[key] = purchase
	m.shares[purchase.Buyer] += purchase.Shares
	m.state.TotalFunds = m.state.TotalFunds.Add(purchase.Value)
	return nil
}

func (m *MemoryTreasuryStore) SharesOwned(ctx context.Context, account models.Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shares[account], nil
}

// Holdings returns a copy of all non-zero balances, ordered by account.
func (m *MemoryTreasuryStore) Holdings(ctx context.Context) ([]models.ShareHolding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.ShareHolding, 0, len(m.shares))
	for account, shares := range m.shares {
		if shares == 0 {
			continue
		}
		result = append(result, models.ShareHolding{Account: account, Shares: shares})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account.Cmp(result[j].Account) < 0
	})
	return result, nil
}

func (m *MemoryTreasuryStore) SaveWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return errNotBootstrapped
	}
	m.withdrawals[withdrawal.ID] = withdrawal
	m.state.TotalFunds = decimal.Zero
	return nil
}

func (m *MemoryTreasuryStore) RevertWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.withdrawals[withdrawal.ID]; !ok {
		return interfaces.ErrRecordNotFound
	}
	delete(m.withdrawals, withdrawal.ID)
	m.state.TotalFunds = m.state.TotalFunds.Add(withdrawal.Amount)
	return nil
}

func (m *MemoryTreasuryStore) TotalWithdrawn(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, w := range m.withdrawals {
		total = total.Add(w.Amount)
	}
	return total, nil
}

// Compile-time check: ensure MemoryTreasuryStore implements TreasuryStore interface
var _ interfaces.TreasuryStore = (*MemoryTreasuryStore)(nil)
