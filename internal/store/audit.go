package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reedfamily/rconadmin/internal/moderation"
)

type LogEntry struct {
	ID        int64     `json:"id"`
	AdminName string    `json:"admin_name"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog is the append-only record of admin actions.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) Record(ctx context.Context, e moderation.AuditEntry) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO admin_logs (admin_name, action, target, details, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Actor, e.Action, e.Target, e.Details, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (a *AuditLog) List(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, admin_name, action, target, details, created_at FROM admin_logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.AdminName, &e.Action, &e.Target, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
