// Package repository implements persistence for job audit records.
package repository

import (
	"context"
	"database/sql"

	"tabserve/internal/domain"
)

const defaultHistoryLimit = 100

// HistoryRepo persists terminal job transitions to SQLite. Unlike the
// keyed job store, history survives TTL expiry and process restarts.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Insert(ctx context.Context, e *domain.JobHistoryEntry) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO job_history (token, kind, status, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Token, string(e.Kind), string(e.Status), e.Error, e.CreatedAt, e.FinishedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// List returns the most recently finished entries, newest first. limit <= 0
// falls back to 100.
func (r *HistoryRepo) List(ctx context.Context, limit int) ([]domain.JobHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token, kind, status, error, created_at, finished_at
		 FROM job_history
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JobHistoryEntry
	for rows.Next() {
		var e domain.JobHistoryEntry
		var kind, status string
		if err := rows.Scan(&e.ID, &e.Token, &kind, &status, &e.Error, &e.CreatedAt, &e.FinishedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.JobKind(kind)
		e.Status = domain.JobStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
