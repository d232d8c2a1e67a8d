package goGuard

import (
	"database/sql"

	"github.com/MrEthical07/goGuard/internal/approval"
)

// NewMemoryProposalStore returns the in-process store used when no store is
// configured.
func NewMemoryProposalStore() ProposalStore {
	return approval.NewMemoryStore()
}

// NewSQLProposalStore persists proposals in db, creating the proposals
// table when missing. Queries use "?" placeholders.
func NewSQLProposalStore(db *sql.DB) (ProposalStore, error) {
	store, err := approval.NewSQLStore(db)
	if err != nil {
		return nil, translate(err)
	}
	return store, nil
}

// OpenSQLiteProposalStore opens the SQLite database at dsn. The caller
// closes the returned *sql.DB after the engine.
func OpenSQLiteProposalStore(dsn string) (ProposalStore, *sql.DB, error) {
	store, db, err := approval.OpenSQLite(dsn)
	if err != nil {
		return nil, nil, translate(err)
	}
	return store, db, nil
}
