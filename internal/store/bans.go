package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reedfamily/rconadmin/internal/moderation"
)

// Ban statuses. Expired is never stored; List and Get report it for active
// bans whose expiry has passed.
const (
	BanActive   = moderation.StatusActive
	BanExpired  = "expired"
	BanUnbanned = "unbanned"
)

const defaultListLimit = 100

// BanFilter narrows Bans.List. Query matches name, any steam id or IP.
type BanFilter struct {
	Status string
	Query  string
	Limit  int
	Offset int
}

type Bans struct {
	db  *sql.DB
	now func() time.Time
}

func NewBans(db *sql.DB) *Bans {
	return &Bans{db: db, now: time.Now}
}

const banColumns = `id, name, steam_id, steam_id_3, steam_id_64, ip, ban_type, reason, duration,
	admin_name, expires_at, created_at, status, server_id`

func (b *Bans) InsertBan(ctx context.Context, rec moderation.BanRecord) (int64, error) {
	created := rec.CreatedAt.UTC().Truncate(time.Second)
	var expires any
	if rec.ExpiresAt != nil {
		expires = rec.ExpiresAt.UTC().Truncate(time.Second)
	}
	var serverID any
	if rec.ServerID != 0 {
		serverID = rec.ServerID
	}
	status := rec.Status
	if status == "" {
		status = BanActive
	}

	res, err := b.db.ExecContext(ctx, `INSERT INTO bans
		(name, steam_id, steam_id_3, steam_id_64, ip, ban_type, reason, duration, admin_name, expires_at, created_at, status, server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.SteamID, rec.SteamID3, rec.SteamID64, rec.IP, rec.BanType, rec.Reason, rec.DurationMinutes,
		rec.AdminName, expires, created, status, serverID)
	if err != nil {
		return 0, fmt.Errorf("insert ban: %w", err)
	}
	return res.LastInsertId()
}

// List returns bans newest first.
func (b *Bans) List(ctx context.Context, f BanFilter) ([]moderation.BanRecord, error) {
	var (
		where []string
		args  []any
	)
	now := b.now().UTC()
	switch f.Status {
	case "":
	case BanActive:
		where = append(where, "status = ? AND (expires_at IS NULL OR expires_at > ?)")
		args = append(args, BanActive, now)
	case BanExpired:
		where = append(where, "status = ? AND expires_at IS NOT NULL AND expires_at <= ?")
		args = append(args, BanActive, now)
	case BanUnbanned:
		where = append(where, "status = ?")
		args = append(args, BanUnbanned)
	default:
		return nil, fmt.Errorf("%w: unknown ban status %q", ErrInvalid, f.Status)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		where = append(where, "(name LIKE ? OR steam_id LIKE ? OR steam_id_3 LIKE ? OR steam_id_64 LIKE ? OR ip LIKE ?)")
		args = append(args, like, like, like, like, like)
	}

	query := "SELECT " + banColumns + " FROM bans"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bans: %w", err)
	}
	defer rows.Close()

	bans := []moderation.BanRecord{}
	for rows.Next() {
		rec, err := b.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, rec)
	}
	return bans, rows.Err()
}

func (b *Bans) Get(ctx context.Context, id int64) (moderation.BanRecord, error) {
	rec, err := b.scan(b.db.QueryRowContext(ctx, "SELECT "+banColumns+" FROM bans WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.BanRecord{}, fmt.Errorf("ban %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return moderation.BanRecord{}, fmt.Errorf("get ban: %w", err)
	}
	return rec, nil
}

// Unban marks a ban lifted and returns the updated record.
func (b *Bans) Unban(ctx context.Context, id int64) (moderation.BanRecord, error) {
	res, err := b.db.ExecContext(ctx, "UPDATE bans SET status = ? WHERE id = ?", BanUnbanned, id)
	if err != nil {
		return moderation.BanRecord{}, fmt.Errorf("unban: %w", err)
	}
	if err := expectOne(res, "ban", id); err != nil {
		return moderation.BanRecord{}, err
	}
	return b.Get(ctx, id)
}

func (b *Bans) scan(row rowScanner) (moderation.BanRecord, error) {
	var (
		rec      moderation.BanRecord
		expires  sql.NullTime
		serverID sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.SteamID, &rec.SteamID3, &rec.SteamID64, &rec.IP, &rec.BanType,
		&rec.Reason, &rec.DurationMinutes, &rec.AdminName, &expires, &rec.CreatedAt, &rec.Status, &serverID)
	if err != nil {
		return rec, err
	}
	if expires.Valid {
		t := expires.Time
		rec.ExpiresAt = &t
	}
	rec.ServerID = serverID.Int64
	if rec.Status == BanActive && rec.ExpiresAt != nil && !rec.ExpiresAt.After(b.now()) {
		rec.Status = BanExpired
	}
	return rec, nil
}
