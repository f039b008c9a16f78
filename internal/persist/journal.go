package persist

import (
	"context"
	"fmt"
)

// JournalEntry is one dispatched milestone notification.
type JournalEntry struct {
	Session   uint64
	Tick      uint64
	Kind      string // trigger kind: session_start, session_end, tick, command
	Trigger   string
	Action    string
	Source    string
	Delivered bool // false for a delivery miss
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteEntries atomically writes a batch of entries in a single transaction.
func (r *JournalRepo) WriteEntries(ctx context.Context, entries []JournalEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO milestone_journal (session_seq, tick, kind, trigger, action, source, delivered)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			int64(e.Session), int64(e.Tick), e.Kind, e.Trigger, e.Action, e.Source, e.Delivered,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// CountSession returns how many entries were journaled for a session.
func (r *JournalRepo) CountSession(ctx context.Context, session uint64) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM milestone_journal WHERE session_seq = $1`, int64(session),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
