// Package backup takes gzip-compressed snapshots of the panel database.
package backup

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/reedfamily/rconadmin/internal/store"
)

type Backup struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	db   *sql.DB
	dir  string
	keep int
	now  func() time.Time
}

// NewService stores snapshots in dir and retains the newest keep of them.
// keep 0 disables pruning.
func NewService(db *sql.DB, dir string, keep int) *Service {
	return &Service{db: db, dir: dir, keep: keep, now: time.Now}
}

// Create snapshots the live database with VACUUM INTO and compresses the
// result.
func (s *Service) Create(ctx context.Context, actor string) (Backup, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Backup{}, fmt.Errorf("create backup directory: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	id := uuid.New().String()[:8]
	filename := fmt.Sprintf("%s-%s.db.gz", now.Format("20060102-150405"), id)
	path := filepath.Join(s.dir, filename)

	snapshot := filepath.Join(s.dir, id+".snapshot")
	defer os.Remove(snapshot)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return Backup{}, fmt.Errorf("snapshot database: %w", err)
	}

	if err := compress(path, snapshot); err != nil {
		os.Remove(path)
		return Backup{}, fmt.Errorf("compress snapshot: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Backup{}, fmt.Errorf("stat backup: %w", err)
	}

	b := Backup{ID: id, Filename: filename, SizeBytes: info.Size(), CreatedBy: actor, CreatedAt: now}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO backups (id, filename, size_bytes, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		b.ID, b.Filename, b.SizeBytes, b.CreatedBy, b.CreatedAt)
	if err != nil {
		os.Remove(path)
		return Backup{}, fmt.Errorf("save backup record: %w", err)
	}

	if err := s.prune(ctx); err != nil {
		slog.Warn("failed to prune old backups", "err", err)
	}
	return b, nil
}

// List returns every backup, newest first.
func (s *Service) List(ctx context.Context) ([]Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, size_bytes, created_by, created_at FROM backups ORDER BY created_at DESC, filename DESC")
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []Backup{}
	for rows.Next() {
		var b Backup
		if err := rows.Scan(&b.ID, &b.Filename, &b.SizeBytes, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (Backup, error) {
	var b Backup
	err := s.db.QueryRowContext(ctx,
		"SELECT id, filename, size_bytes, created_by, created_at FROM backups WHERE id = ?", id,
	).Scan(&b.ID, &b.Filename, &b.SizeBytes, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Backup{}, fmt.Errorf("backup %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return Backup{}, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

// FilePath returns the location of a backup archive.
func (s *Service) FilePath(ctx context.Context, id string) (string, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, b.Filename), nil
}

// Delete removes a backup archive and its record.
func (s *Service) Delete(ctx context.Context, id string) error {
	path, err := s.FilePath(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup file: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM backups WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}
	return nil
}

// Restore decompresses a backup to dest, which must not exist. The panel
// should be stopped before dest replaces the live database.
func (s *Service) Restore(ctx context.Context, id, dest string) error {
	path, err := s.FilePath(ctx, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s already exists", store.ErrInvalid, dest)
	}

	tmp := dest + ".partial"
	if err := decompress(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("decompress backup: %w", err)
	}
	return os.Rename(tmp, dest)
}

func (s *Service) prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM backups ORDER BY created_at DESC, filename DESC LIMIT -1 OFFSET ?", s.keep)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var errs []error
	for _, id := range stale {
		errs = append(errs, s.Delete(ctx, id))
	}
	if len(stale) > 0 {
		slog.Info("pruned old backups", "count", len(stale))
	}
	return errors.Join(errs...)
}

func compress(dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func decompress(dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	gr, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gr.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, gr); err != nil {
		return err
	}
	return out.Close()
}
