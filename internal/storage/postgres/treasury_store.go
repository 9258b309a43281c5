package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces" // interface TreasuryStore
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type PostgresTreasuryStore struct {
	db *sql.DB
}

func NewPostgresTreasuryStore(db *sql.DB) *PostgresTreasuryStore {
	return &PostgresTreasuryStore{
		db: db,
	}
}

func (p *PostgresTreasuryStore) Bootstrap(ctx context.Context, initial models.TreasuryState) (models.TreasuryState, error) {
	const query = `INSERT INTO treasury_state (id, owner, sale_active, total_funds)
	VALUES (1, $1, $2, $3) ON CONFLICT (id) DO NOTHING`

	if _, err := p.db.ExecContext(ctx, query, initial.Owner, initial.SaleActive, initial.TotalFunds); err != nil {
		return models.TreasuryState{}, err
	}
	return p.LoadState(ctx)
}

func (p *PostgresTreasuryStore) LoadState(ctx context.Context) (models.TreasuryState, error) {
	const query = `SELECT owner, sale_active, total_funds FROM treasury_state WHERE id = 1`

	var state models.TreasuryState
	err := p.db.QueryRowContext(ctx, query).Scan(&state.Owner, &state.SaleActive, &state.TotalFunds)
	if err == sql.ErrNoRows {
		return models.TreasuryState{}, errors.New("treasury state is not bootstrapped")
	}
	if err != nil {
		return models.TreasuryState{}, err
	}
	return state, nil
}

func (p *PostgresTreasuryStore) SetSaleActive(ctx context.Context, active bool) error {
	const query = `UPDATE treasury_state SET sale_active = $1 WHERE id = 1`

	_, err := p.db.ExecContext(ctx, query, active)
	return err
}

func (p *PostgresTreasuryStore) FindPurchase(ctx context.Context, idempotencyKey string) (models.SharePurchase, error) {
	const query = `SELECT id, idempotency_key, buyer, shares, value, created_at
	FROM share_purchases WHERE idempotency_key = $1`

	var (
		purchase models.SharePurchase
		shares   int64
	)
	err := p.db.QueryRowContext(ctx, query, idempotencyKey).Scan(
		&purchase.ID, &purchase.IdempotencyKey, &purchase.Buyer, &shares, &purchase.Value, &purchase.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.SharePurchase{}, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return models.SharePurchase{}, err
	}
	purchase.Shares = uint64(shares)
	return purchase, nil
}

// SavePurchase inserts the purchase, upserts the holding and raises the
// total funds in a single transaction.
func (p *PostgresTreasuryStore) SavePurchase(ctx context.Context, purchase models.SharePurchase) error {
	return withTx(ctx, p.db, func(dbTx *sql.Tx) error {
		const insertPurchase = `INSERT INTO share_purchases (id, idempotency_key, buyer, shares, value, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`
		if _, err := dbTx.ExecContext(ctx, insertPurchase,
			purchase.ID, purchase.IdempotencyKey, purchase.Buyer, int64(purchase.Shares), purchase.Value, purchase.CreatedAt,
		); err != nil {
			return err
		}

		const upsertHolding = `INSERT INTO share_holdings (account, shares) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET shares = share_holdings.shares + EXCLUDED.shares`
		if _, err := dbTx.ExecContext(ctx, upsertHolding, purchase.Buyer, int64(purchase.Shares)); err != nil {
			return err
		}

		const addFunds = `UPDATE treasury_state SET total_funds = total_funds + $1 WHERE id = 1`
		_, err := dbTx.ExecContext(ctx, addFunds, purchase.Value)
		return err
	})
}

func (p *PostgresTreasuryStore) SharesOwned(ctx context.Context, account models.Account) (uint64, error) {
	const query = `SELECT shares FROM share_holdings WHERE account = $1`

	var shares int64
	err := p.db.QueryRowContext(ctx, query, account).Scan(&shares)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(shares), nil
}

func (p *PostgresTreasuryStore) Holdings(ctx context.Context) ([]models.ShareHolding, error) {
	const query = `SELECT account, shares FROM share_holdings WHERE shares > 0 ORDER BY account`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var holdings []models.ShareHolding
	for rows.Next() {
		var (
			holding models.ShareHolding
			shares  int64
		)
		if err := rows.Scan(&holding.Account, &shares); err != nil {
			return nil, err
		}
		holding.Shares = uint64(shares)
		holdings = append(holdings, holding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holdings, nil
}

func (p *PostgresTreasuryStore) SaveWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error {
	return withTx(ctx, p.db, func(dbTx *sql.Tx) error {
		const insertWithdrawal = `INSERT INTO withdrawals (id, recipient, amount, created_at)
		VALUES ($1, $2, $3, $4)`
		if _, err := dbTx.ExecContext(ctx, insertWithdrawal,
			withdrawal.ID, withdrawal.Recipient, withdrawal.Amount, withdrawal.CreatedAt,
		); err != nil {
			return err
		}

		const zeroFunds = `UPDATE treasury_state SET total_funds = 0 WHERE id = 1`
		_, err := dbTx.ExecContext(ctx, zeroFunds)
		return err
	})
}

func (p *PostgresTreasuryStore) RevertWithdrawal(ctx context.Context, withdrawal models.Withdrawal) error {
	return withTx(ctx, p.db, func(dbTx *sql.Tx) error {
		const deleteWithdrawal = `DELETE FROM withdrawals WHERE id = $1`
		res, err := dbTx.ExecContext(ctx, deleteWithdrawal, withdrawal.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return interfaces.ErrRecordNotFound
		}

		const restoreFunds = `UPDATE treasury_state SET total_funds = total_funds + $1 WHERE id = 1`
		_, err = dbTx.ExecContext(ctx, restoreFunds, withdrawal.Amount)
		return err
	})
}

func (p *PostgresTreasuryStore) TotalWithdrawn(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM withdrawals`

	var total decimal.Decimal
	if err := p.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

var _ interfaces.TreasuryStore = (*PostgresTreasuryStore)(nil)
