// Package store persists the server inventory, ban records and the admin
// audit log in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reedfamily/rconadmin/internal/game"
	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/rcon"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// Defaults applied to new servers.
const (
	DefaultVerification   = true
	DefaultRequiredRating = 3.0
	DefaultRequiredLevel  = 1
	DefaultWhitelistOnly  = false
)

type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Servers   []Server  `json:"servers"`
}

type Server struct {
	ID                  int64     `json:"id"`
	GroupID             int64     `json:"group_id"`
	Name                string    `json:"name"`
	IP                  string    `json:"ip"`
	Port                int       `json:"port"`
	RCONPassword        string    `json:"-"`
	Game                string    `json:"game"`
	VerificationEnabled bool      `json:"verification_enabled"`
	RequiredRating      float64   `json:"required_rating"`
	RequiredLevel       int       `json:"required_level"`
	WhitelistOnly       bool      `json:"whitelist_only"`
	CreatedAt           time.Time `json:"created_at"`
}

// Target converts the row into the form used by the moderation core.
func (s Server) Target() moderation.Server {
	return moderation.Server{
		ID:   s.ID,
		Name: s.Name,
		Game: s.Game,
		Addr: rcon.Address{Host: s.IP, Port: uint16(s.Port), Secret: s.RCONPassword},
	}
}

// ServerInput carries the fields of a create or partial update. Nil fields
// are left unchanged on update and defaulted on create.
type ServerInput struct {
	GroupID             *int64   `json:"group_id"`
	Name                *string  `json:"name"`
	IP                  *string  `json:"ip"`
	Port                *int     `json:"port"`
	RCONPassword        *string  `json:"rcon_password"`
	Game                *string  `json:"game"`
	VerificationEnabled *bool    `json:"verification_enabled"`
	RequiredRating      *float64 `json:"required_rating"`
	RequiredLevel       *int     `json:"required_level"`
	WhitelistOnly       *bool    `json:"whitelist_only"`
}

func (in ServerInput) validate(create bool) error {
	if create {
		switch {
		case in.GroupID == nil:
			return fmt.Errorf("%w: group_id is required", ErrInvalid)
		case in.Name == nil:
			return fmt.Errorf("%w: name is required", ErrInvalid)
		case in.IP == nil:
			return fmt.Errorf("%w: ip is required", ErrInvalid)
		case in.Port == nil:
			return fmt.Errorf("%w: port is required", ErrInvalid)
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalid)
	}
	if in.IP != nil && strings.TrimSpace(*in.IP) == "" {
		return fmt.Errorf("%w: ip must not be empty", ErrInvalid)
	}
	if in.Port != nil && (*in.Port < 1 || *in.Port > 65535) {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, *in.Port)
	}
	if in.Game != nil {
		if _, ok := game.Lookup(*in.Game); !ok {
			return fmt.Errorf("%w: unknown game %q (have %s)", ErrInvalid, *in.Game, strings.Join(game.Names(), ", "))
		}
	}
	return nil
}

type Inventory struct {
	db *sql.DB
}

func NewInventory(db *sql.DB) *Inventory {
	return &Inventory{db: db}
}

const serverColumns = `id, group_id, name, ip, port, rcon_password, game,
	verification_enabled, required_rating, required_level, whitelist_only, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (Server, error) {
	var s Server
	err := row.Scan(&s.ID, &s.GroupID, &s.Name, &s.IP, &s.Port, &s.RCONPassword, &s.Game,
		&s.VerificationEnabled, &s.RequiredRating, &s.RequiredLevel, &s.WhitelistOnly, &s.CreatedAt)
	return s, err
}

// ListGroups returns every group with its servers, ordered by id.
func (inv *Inventory) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := inv.db.QueryContext(ctx, "SELECT id, name, created_at FROM server_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	groups := []Group{}
	index := map[int64]int{}
	for rows.Next() {
		g := Group{Servers: []Server{}}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	servers, err := inv.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range servers {
		if i, ok := index[s.GroupID]; ok {
			groups[i].Servers = append(groups[i].Servers, s)
		}
	}
	return groups, nil
}

func (inv *Inventory) CreateGroup(ctx context.Context, name string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := inv.db.ExecContext(ctx, "INSERT INTO server_groups (name, created_at) VALUES (?, ?)", name, now)
	if err != nil {
		return Group{}, fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Group{}, err
	}
	return Group{ID: id, Name: name, CreatedAt: now, Servers: []Server{}}, nil
}

// DeleteGroup removes a group and, by cascade, its servers.
func (inv *Inventory) DeleteGroup(ctx context.Context, id int64) error {
	res, err := inv.db.ExecContext(ctx, "DELETE FROM server_groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return expectOne(res, "group", id)
}

func (inv *Inventory) ListServers(ctx context.Context) ([]Server, error) {
	rows, err := inv.db.QueryContext(ctx, "SELECT "+serverColumns+" FROM servers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	servers := []Server{}
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

func (inv *Inventory) GetServer(ctx context.Context, id int64) (Server, error) {
	s, err := scanServer(inv.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Server{}, fmt.Errorf("server %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Server{}, fmt.Errorf("get server: %w", err)
	}
	return s, nil
}

func (inv *Inventory) CreateServer(ctx context.Context, in ServerInput) (Server, error) {
	if err := in.validate(true); err != nil {
		return Server{}, err
	}
	if err := inv.groupExists(ctx, *in.GroupID); err != nil {
		return Server{}, err
	}

	s := Server{
		GroupID:             *in.GroupID,
		Name:                strings.TrimSpace(*in.Name),
		IP:                  strings.TrimSpace(*in.IP),
		Port:                *in.Port,
		Game:                game.Fallback,
		VerificationEnabled: DefaultVerification,
		RequiredRating:      DefaultRequiredRating,
		RequiredLevel:       DefaultRequiredLevel,
		WhitelistOnly:       DefaultWhitelistOnly,
		CreatedAt:           time.Now().UTC().Truncate(time.Second),
	}
	apply(&s, in)

	res, err := inv.db.ExecContext(ctx, `INSERT INTO servers
		(group_id, name, ip, port, rcon_password, game, verification_enabled, required_rating, required_level, whitelist_only, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.GroupID, s.Name, s.IP, s.Port, s.RCONPassword, s.Game,
		s.VerificationEnabled, s.RequiredRating, s.RequiredLevel, s.WhitelistOnly, s.CreatedAt)
	if err != nil {
		return Server{}, fmt.Errorf("insert server: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return Server{}, err
	}
	return s, nil
}

// UpdateServer applies the non-nil fields of in.
func (inv *Inventory) UpdateServer(ctx context.Context, id int64, in ServerInput) (Server, error) {
	if err := in.validate(false); err != nil {
		return Server{}, err
	}
	s, err := inv.GetServer(ctx, id)
	if err != nil {
		return Server{}, err
	}
	if in.GroupID != nil && *in.GroupID != s.GroupID {
		if err := inv.groupExists(ctx, *in.GroupID); err != nil {
			return Server{}, err
		}
	}
	apply(&s, in)

	_, err = inv.db.ExecContext(ctx, `UPDATE servers SET
		group_id = ?, name = ?, ip = ?, port = ?, rcon_password = ?, game = ?,
		verification_enabled = ?, required_rating = ?, required_level = ?, whitelist_only = ?
		WHERE id = ?`,
		s.GroupID, s.Name, s.IP, s.Port, s.RCONPassword, s.Game,
		s.VerificationEnabled, s.RequiredRating, s.RequiredLevel, s.WhitelistOnly, id)
	if err != nil {
		return Server{}, fmt.Errorf("update server: %w", err)
	}
	return s, nil
}

func (inv *Inventory) DeleteServer(ctx context.Context, id int64) error {
	res, err := inv.db.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	return expectOne(res, "server", id)
}

func (inv *Inventory) groupExists(ctx context.Context, id int64) error {
	var one int
	err := inv.db.QueryRowContext(ctx, "SELECT 1 FROM server_groups WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	return err
}

func apply(s *Server, in ServerInput) {
	if in.GroupID != nil {
		s.GroupID = *in.GroupID
	}
	if in.Name != nil {
		s.Name = strings.TrimSpace(*in.Name)
	}
	if in.IP != nil {
		s.IP = strings.TrimSpace(*in.IP)
	}
	if in.Port != nil {
		s.Port = *in.Port
	}
	if in.RCONPassword != nil {
		s.RCONPassword = *in.RCONPassword
	}
	if in.Game != nil {
		s.Game = *in.Game
	}
	if in.VerificationEnabled != nil {
		s.VerificationEnabled = *in.VerificationEnabled
	}
	if in.RequiredRating != nil {
		s.RequiredRating = *in.RequiredRating
	}
	if in.RequiredLevel != nil {
		s.RequiredLevel = *in.RequiredLevel
	}
	if in.WhitelistOnly != nil {
		s.WhitelistOnly = *in.WhitelistOnly
	}
}

func expectOne(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}
