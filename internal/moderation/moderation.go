// Package moderation runs kick and ban actions against game servers and
// records bans after the fact.
//
// The remote command is executed synchronously and decides the result seen by
// the caller. For bans, identity canonicalization and persistence are handed
// to a Reconciler and never affect that result.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reedfamily/rconadmin/internal/rcon"
	"github.com/reedfamily/rconadmin/internal/roster"
	"github.com/reedfamily/rconadmin/internal/steamid"
)

const (
	DefaultKickReason = "Kicked by admin"
	DefaultBanReason  = "Banned by admin"

	BanTypeIP    = "ip"
	StatusActive = "active"

	// MaxBanMinutes is the longest timed ban, 100 years. Longer bans should
	// use duration 0 (permanent).
	MaxBanMinutes = 100 * 365 * 24 * 60
)

var (
	ErrInvalidDuration = fmt.Errorf("ban duration must be between 0 and %d minutes", MaxBanMinutes)
	ErrInvalidUserID   = errors.New("userid must not be negative")
)

// Executor runs one console command against one server.
type Executor interface {
	Execute(ctx context.Context, addr rcon.Address, command string) rcon.Outcome
}

// IdentityResolver canonicalizes a raw identity. It may return a partially
// filled Identity together with an error.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (steamid.Identity, error)
}

// BanStore persists ban records.
type BanStore interface {
	InsertBan(ctx context.Context, rec BanRecord) (int64, error)
}

// AuditLog appends admin actions.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Submitter accepts ban jobs for background processing. Submit must not block.
type Submitter interface {
	Submit(job BanJob)
}

// Server is the moderation target: one game server and its console address.
type Server struct {
	ID   int64
	Name string
	Game string
	Addr rcon.Address
}

type KickRequest struct {
	UserID int32  `json:"userid"`
	Reason string `json:"reason,omitempty"`
}

// BanRequest bans a connected player; DurationMinutes 0 is permanent.
type BanRequest struct {
	UserID          int32  `json:"userid"`
	DurationMinutes int    `json:"duration"`
	Reason          string `json:"reason,omitempty"`
}

// BanRecord is the persisted form of a ban issued through the console.
type BanRecord struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	SteamID         string     `json:"steam_id"`
	SteamID3        string     `json:"steam_id_3"`
	SteamID64       string     `json:"steam_id_64"`
	IP              string     `json:"ip"`
	BanType         string     `json:"ban_type"`
	Reason          string     `json:"reason"`
	DurationMinutes int        `json:"duration"`
	AdminName       string     `json:"admin_name"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          string     `json:"status"`
	ServerID        int64      `json:"server_id"`
}

type AuditEntry struct {
	Actor   string
	Action  string
	Target  string
	Details string
}

// BanJob carries everything the reconciler needs after a successful ban.
type BanJob struct {
	ID              string
	ServerID        int64
	ServerName      string
	Actor           string
	UserID          int32
	DurationMinutes int
	Reason          string
	Target          roster.Target
	// CreatedAt is when the remote ban succeeded.
	CreatedAt time.Time
}

// CommandError reports a console command that did not complete.
type CommandError struct {
	Op  string
	Err error
}

func (e *CommandError) Error() string { return "failed to " + e.Op + ": " + e.Err.Error() }
func (e *CommandError) Unwrap() error { return e.Err }

// ExpiresAt returns createdAt + minutes, or nil for permanent bans. minutes
// is capped at MaxBanMinutes.
func ExpiresAt(createdAt time.Time, minutes int) *time.Time {
	if minutes <= 0 {
		return nil
	}
	minutes = min(minutes, MaxBanMinutes)
	t := createdAt.Add(time.Duration(minutes) * time.Minute)
	return &t
}

// StripPort drops a trailing ":port" from an IPv4 address.
func StripPort(ip string) string {
	if i := strings.IndexByte(ip, ':'); i >= 0 {
		return ip[:i]
	}
	return ip
}
