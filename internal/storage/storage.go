// Package storage opens the treasury and proposal stores for a configured driver.
package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	interfaces "github.com/sheikh-saqib/dao-treasury-ledger/internal/interfaces"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/storage/postgres"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Stores bundles the stores a server needs. Close releases the database
// handle, if any.
type Stores struct {
	Treasury  interfaces.TreasuryStore
	Proposals interfaces.ProposalStore

	db *sql.DB
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open returns stores for driver. The postgres driver connects to dsn and
// applies the schema before returning.
func Open(ctx context.Context, driver, dsn string) (*Stores, error) {
	switch driver {
	case DriverMemory, "":
		return &Stores{
			Treasury:  memory.NewMemoryTreasuryStore(),
			Proposals: memory.NewMemoryProposalStore(),
		}, nil

	case DriverPostgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "ping postgres")
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Treasury:  postgres.NewPostgresTreasuryStore(db),
			Proposals: postgres.NewPostgresProposalStore(db),
			db:        db,
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
}
