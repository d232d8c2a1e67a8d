package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SQLStore persists proposals in a SQL database using "?" placeholders.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps db and creates the proposals table when missing.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		payload BLOB,
		value TEXT NOT NULL,
		proposer TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		approvals TEXT NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		executed_at INTEGER NOT NULL DEFAULT 0,
		emergency INTEGER NOT NULL DEFAULT 0
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

const selectProposal = `SELECT id, target, payload, value, proposer, created_at, approvals, executed, cancelled, executed_at, emergency FROM proposals`

func (s *SQLStore) Create(ctx context.Context, p Proposal) error {
	approvals, err := json.Marshal(nonNil(p.Approvals))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO proposals (id, target, payload, value, proposer, created_at, approvals, executed, cancelled, executed_at, emergency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Target, p.Payload, strconv.FormatUint(p.Value, 10), p.Proposer,
		p.CreatedAt.UnixNano(), string(approvals), p.Executed, p.Cancelled, unixNano(p.ExecutedAt), p.Emergency,
	)
	if err != nil {
		return fmt.Errorf("%w: insert proposal: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Proposal, error) {
	row := s.db.QueryRowContext(ctx, selectProposal+` WHERE id = ?`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: get proposal: %v", ErrStoreUnavailable, err)
	}
	return p, nil
}

func (s *SQLStore) Update(ctx context.Context, p Proposal) error {
	approvals, err := json.Marshal(nonNil(p.Approvals))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET approvals = ?, executed = ?, cancelled = ?, executed_at = ? WHERE id = ?`,
		string(approvals), p.Executed, p.Cancelled, unixNano(p.ExecutedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update proposal: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, selectProposal+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list proposals: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan proposal: %v", ErrStoreUnavailable, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list proposals: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (Proposal, error) {
	var (
		p          Proposal
		value      string
		createdAt  int64
		approvals  string
		executedAt int64
	)
	if err := row.Scan(&p.ID, &p.Target, &p.Payload, &value, &p.Proposer, &createdAt, &approvals, &p.Executed, &p.Cancelled, &executedAt, &p.Emergency); err != nil {
		return Proposal{}, err
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return Proposal{}, fmt.Errorf("decode value %q: %w", value, err)
	}
	p.Value = v
	if err := json.Unmarshal([]byte(approvals), &p.Approvals); err != nil {
		return Proposal{}, fmt.Errorf("decode approvals: %w", err)
	}
	p.CreatedAt = time.Unix(0, createdAt)
	if executedAt > 0 {
		p.ExecutedAt = time.Unix(0, executedAt)
	}
	return p, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
