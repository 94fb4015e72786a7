package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reedfamily/rconadmin/internal/store"
)

// Schedule runs one console command on one server whenever its cron
// expression matches.
type Schedule struct {
	ID        string     `json:"id"`
	ServerID  int64      `json:"server_id"`
	Name      string     `json:"name"`
	CronExpr  string     `json:"cron_expr"`
	Command   string     `json:"command"`
	Enabled   bool       `json:"enabled"`
	LastRun   *time.Time `json:"last_run"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ScheduleInput is the body of a create or partial update.
type ScheduleInput struct {
	Name     *string `json:"name"`
	CronExpr *string `json:"cron_expr"`
	Command  *string `json:"command"`
	Enabled  *bool   `json:"enabled"`
}

func (in ScheduleInput) validate(create bool) error {
	if create && (in.Name == nil || in.CronExpr == nil || in.Command == nil) {
		return fmt.Errorf("%w: name, cron_expr and command required", store.ErrInvalid)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", store.ErrInvalid)
	}
	if in.CronExpr != nil {
		if _, err := ParseCron(*in.CronExpr); err != nil {
			return fmt.Errorf("%w: invalid cron expression: %v", store.ErrInvalid, err)
		}
	}
	if in.Command != nil {
		cmd := strings.TrimSpace(*in.Command)
		if cmd == "" || strings.ContainsAny(cmd, "\r\n") {
			return fmt.Errorf("%w: command must be a single non-empty line", store.ErrInvalid)
		}
	}
	return nil
}

// Store persists schedules.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const scheduleColumns = "id, server_id, name, cron_expr, command, enabled, last_run, created_at"

func scanSchedule(row interface{ Scan(...any) error }) (Schedule, error) {
	var s Schedule
	var lastRun sql.NullTime
	if err := row.Scan(&s.ID, &s.ServerID, &s.Name, &s.CronExpr, &s.Command, &s.Enabled, &lastRun, &s.CreatedAt); err != nil {
		return s, err
	}
	if lastRun.Valid {
		t := lastRun.Time
		s.LastRun = &t
	}
	return s, nil
}

func (st *Store) query(ctx context.Context, where string, args ...any) ([]Schedule, error) {
	rows, err := st.db.QueryContext(ctx, "SELECT "+scheduleColumns+" FROM schedules "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// List returns the schedules of a server, newest first, with NextRun filled
// for enabled ones.
func (st *Store) List(ctx context.Context, serverID int64) ([]Schedule, error) {
	schedules, err := st.query(ctx, "WHERE server_id = ? ORDER BY created_at DESC, id", serverID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range schedules {
		schedules[i].fillNext(now)
	}
	return schedules, nil
}

// Enabled returns every enabled schedule across servers.
func (st *Store) Enabled(ctx context.Context) ([]Schedule, error) {
	return st.query(ctx, "WHERE enabled = 1 ORDER BY server_id, id")
}

func (st *Store) Get(ctx context.Context, serverID int64, id string) (Schedule, error) {
	s, err := scanSchedule(st.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ? AND server_id = ?", id, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("schedule %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("get schedule: %w", err)
	}
	s.fillNext(time.Now())
	return s, nil
}

func (st *Store) Create(ctx context.Context, serverID int64, in ScheduleInput) (Schedule, error) {
	if err := in.validate(true); err != nil {
		return Schedule{}, err
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	id := uuid.New().String()[:8]
	_, err := st.db.ExecContext(ctx,
		"INSERT INTO schedules (id, server_id, name, cron_expr, command, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, serverID, strings.TrimSpace(*in.Name), strings.TrimSpace(*in.CronExpr), strings.TrimSpace(*in.Command),
		enabled, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return Schedule{}, fmt.Errorf("insert schedule: %w", err)
	}
	return st.Get(ctx, serverID, id)
}

func (st *Store) Update(ctx context.Context, serverID int64, id string, in ScheduleInput) (Schedule, error) {
	if err := in.validate(false); err != nil {
		return Schedule{}, err
	}
	s, err := st.Get(ctx, serverID, id)
	if err != nil {
		return Schedule{}, err
	}
	if in.Name != nil {
		s.Name = strings.TrimSpace(*in.Name)
	}
	if in.CronExpr != nil {
		s.CronExpr = strings.TrimSpace(*in.CronExpr)
	}
	if in.Command != nil {
		s.Command = strings.TrimSpace(*in.Command)
	}
	if in.Enabled != nil {
		s.Enabled = *in.Enabled
	}
	_, err = st.db.ExecContext(ctx,
		"UPDATE schedules SET name = ?, cron_expr = ?, command = ?, enabled = ? WHERE id = ? AND server_id = ?",
		s.Name, s.CronExpr, s.Command, s.Enabled, id, serverID)
	if err != nil {
		return Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	return st.Get(ctx, serverID, id)
}

func (st *Store) Delete(ctx context.Context, serverID int64, id string) error {
	res, err := st.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ? AND server_id = ?", id, serverID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (st *Store) markRun(ctx context.Context, id string, at time.Time) error {
	_, err := st.db.ExecContext(ctx, "UPDATE schedules SET last_run = ? WHERE id = ?", at.UTC(), id)
	return err
}

func (s *Schedule) fillNext(now time.Time) {
	s.NextRun = nil
	if !s.Enabled {
		return
	}
	c, err := ParseCron(s.CronExpr)
	if err != nil {
		return
	}
	if next, ok := c.Next(now); ok {
		s.NextRun = &next
	}
}
