package postgres

import (
	"context"
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
)

type PostgresProposalStore struct {
	db *sql.DB
}

func NewPostgresProposalStore(db *sql.DB) *PostgresProposalStore {
	return &PostgresProposalStore{
		db: db,
	}
}

func (p *PostgresProposalStore) Bootstrap(ctx context.Context, initial models.RegistryState) (models.RegistryState, error) {
	const query = `INSERT INTO registry_state (id, owner, next_proposal_id)
	VALUES (1, $1, 1) ON CONFLICT (id) DO NOTHING`

	if _, err := p.db.ExecContext(ctx, query, initial.Owner); err != nil {
		return models.RegistryState{}, err
	}
	return p.LoadState(ctx)
}

func (p *PostgresProposalStore) LoadState(ctx context.Context) (models.RegistryState, error) {
	const query = `SELECT owner, dao_reference, next_proposal_id FROM registry_state WHERE id = 1`

	var (
		state     models.RegistryState
		reference []byte
		nextID    int64
	)
	err := p.db.QueryRowContext(ctx, query).Scan(&state.Owner, &reference, &nextID)
	if err == sql.ErrNoRows {
		return models.RegistryState{}, errors.New("registry state is not bootstrapped")
	}
	if err != nil {
		return models.RegistryState{}, err
	}
	state.DAOReference = common.BytesToAddress(reference)
	state.NextProposalID = uint64(nextID)
	return state, nil
}

func (p *PostgresProposalStore) SetDAOReference(ctx context.Context, reference models.Account) error {
	const query = `UPDATE registry_state SET dao_reference = $1 WHERE id = 1`

	_, err := p.db.ExecContext(ctx, query, reference)
	return err
}

// CreateProposal takes the next id under a row lock so concurrent writers
// never share an id.
func (p *PostgresProposalStore) CreateProposal(ctx context.Context, proposal models.Proposal) (models.Proposal, error) {
	err := withTx(ctx, p.db, func(dbTx *sql.Tx) error {
		const nextID = `UPDATE registry_state SET next_proposal_id = next_proposal_id + 1
		WHERE id = 1 RETURNING next_proposal_id - 1`
		var id int64
		if err := dbTx.QueryRowContext(ctx, nextID).Scan(&id); err != nil {
			return err
		}
		proposal.ID = uint64(id)

		const insert = `INSERT INTO proposals (id, description, proposer, active, votes_pro, votes_con, created_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5)`
		_, err := dbTx.ExecContext(ctx, insert, id, proposal.Description, proposal.Proposer, proposal.Active, proposal.CreatedAt)
		return err
	})
	if err != nil {
		return models.Proposal{}, err
	}
	return proposal, nil
}

const selectProposal = `SELECT id, description, proposer, active, votes_pro, votes_con, created_at, closed_at FROM proposals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (models.Proposal, error) {
	var (
		proposal               models.Proposal
		id, votesPro, votesCon int64
		closedAt               sql.NullTime
	)
	if err := row.Scan(&id, &proposal.Description, &proposal.Proposer, &proposal.Active,
		&votesPro, &votesCon, &proposal.CreatedAt, &closedAt); err != nil {
		return models.Proposal{}, err
	}
	proposal.ID = uint64(id)
	proposal.VotesPro = uint64(votesPro)
	proposal.VotesCon = uint64(votesCon)
	if closedAt.Valid {
		proposal.ClosedAt = &closedAt.Time
	}
	return proposal, nil
}

func (p *PostgresProposalStore) GetProposal(ctx context.Context, id uint64) (models.Proposal, error) {
	proposal, err := scanProposal(p.db.QueryRowContext(ctx, selectProposal+` WHERE id = $1`, int64(id)))
	if err == sql.ErrNoRows {
		return models.Proposal{}, interfaces.ErrRecordNotFound
	}
	return proposal, err
}

func (p *PostgresProposalStore) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	rows, err := p.db.QueryContext(ctx, selectProposal+` ORDER BY id`)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

func (p *PostgresProposalStore) RecordVote(ctx context.Context, vote models.Vote) error {
	return withTx(ctx, p.db, func(dbTx *sql.Tx) error {
		const tally = `UPDATE proposals SET
			votes_pro = votes_pro + CASE WHEN $2 THEN 1 ELSE 0 END,
			votes_con = votes_con + CASE WHEN $2 THEN 0 ELSE 1 END
		WHERE id = $1`
		res, err := dbTx.ExecContext(ctx, tally, int64(vote.ProposalID), vote.Support)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return interfaces.ErrRecordNotFound
		}

		const insert = `INSERT INTO votes (proposal_id, voter, support, cast_at) VALUES ($1, $2, $3, $4)`
		_, err = dbTx.ExecContext(ctx, insert, int64(vote.ProposalID), vote.Voter, vote.Support, vote.CastAt)
		return err
	})
}

func (p *PostgresProposalStore) HasVoted(ctx context.Context, proposalID uint64, voter models.Account) (bool, error) {
	const query = `select 1 from votes where proposal_id = $1 and voter = $2 Limit 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, int64(proposalID), voter).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresProposalStore) CloseProposal(ctx context.Context, proposal models.Proposal) error {
	const query = `UPDATE proposals SET active = FALSE, closed_at = $2 WHERE id = $1 AND active`

	res, err := p.db.ExecContext(ctx, query, int64(proposal.ID), proposal.ClosedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrRecordNotFound
	}
	return nil
}

var _ interfaces.ProposalStore = (*PostgresProposalStore)(nil)
