package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BacklogRepository persists the backlog across restarts.
type BacklogRepository interface {
	// Load returns the saved entries, oldest first.
	Load(ctx context.Context) ([]Entry, error)

	// Replace overwrites the saved entries with entries.
	Replace(ctx context.Context, entries []Entry) error
}

// SQLiteBacklogRepository implements BacklogRepository using the
// backlog_entries table.
type SQLiteBacklogRepository struct {
	db *sql.DB
}

// NewSQLiteBacklogRepository creates a repository on an open, migrated database.
func NewSQLiteBacklogRepository(db *sql.DB) *SQLiteBacklogRepository {
	return &SQLiteBacklogRepository{db: db}
}

// Load returns all saved entries in insertion order.
func (r *SQLiteBacklogRepository) Load(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT measurement, bucket, url, line, enqueued_at
		 FROM backlog_entries
		 ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying backlog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var enqueuedAt string
		if err := rows.Scan(&e.Measurement, &e.Bucket, &e.URL, &e.Line, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scanning backlog entry: %w", err)
		}
		e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing enqueued_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backlog: %w", err)
	}
	return entries, nil
}

// Replace deletes every saved entry and inserts entries, in one transaction.
func (r *SQLiteBacklogRepository) Replace(ctx context.Context, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM backlog_entries"); err != nil {
		return fmt.Errorf("clearing backlog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO backlog_entries (measurement, bucket, url, line, enqueued_at) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.Measurement, e.Bucket, e.URL, e.Line,
			e.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting backlog entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing backlog: %w", err)
	}
	return nil
}

// RestoreFrom loads saved entries into the backlog.
//
// Returns:
//   - int: Entries queued after the restore
//   - error: If loading fails
func (p *Publisher) RestoreFrom(ctx context.Context, repo BacklogRepository) (int, error) {
	entries, err := repo.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := p.RestoreBacklog(entries)
	if len(entries) > 0 {
		p.logger.Info("restored backlog", "saved", len(entries), "queued", n)
	}
	return n, nil
}

// SaveTo writes the current backlog to repo, replacing what was there.
func (p *Publisher) SaveTo(ctx context.Context, repo BacklogRepository) error {
	entries := p.SnapshotBacklog()
	if err := repo.Replace(ctx, entries); err != nil {
		return err
	}
	p.logger.Info("saved backlog", "entries", len(entries))
	return nil
}
