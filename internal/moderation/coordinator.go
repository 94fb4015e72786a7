package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reedfamily/rconadmin/internal/game"
	"github.com/reedfamily/rconadmin/internal/rcon"
	"github.com/reedfamily/rconadmin/internal/roster"
)

// Coordinator executes moderation actions. It is safe for concurrent use.
type Coordinator struct {
	exec  Executor
	audit AuditLog
	jobs  Submitter
	now   func() time.Time
}

func NewCoordinator(exec Executor, audit AuditLog, jobs Submitter) *Coordinator {
	return &Coordinator{exec: exec, audit: audit, jobs: jobs, now: time.Now}
}

func (c *Coordinator) dialect(srv Server) game.Dialect {
	d, ok := game.Lookup(srv.Game)
	if !ok && srv.Game != "" {
		slog.Debug("unknown game dialect, using fallback", "server_id", srv.ID, "game", srv.Game, "fallback", game.Fallback)
	}
	return d
}

// ListRoster returns the players currently connected to srv.
func (c *Coordinator) ListRoster(ctx context.Context, srv Server) ([]roster.Player, error) {
	out := c.exec.Execute(ctx, srv.Addr, c.dialect(srv).StatusCommand())
	if err := out.Err(); err != nil {
		return nil, &CommandError{Op: "list players", Err: err}
	}
	slog.Debug("status output", "server_id", srv.ID, "body", out.Body)
	return roster.Parse(out.Body), nil
}

// TestConnection reports whether addr accepts the secret and answers a
// harmless command.
func (c *Coordinator) TestConnection(ctx context.Context, addr rcon.Address) error {
	out := c.exec.Execute(ctx, addr, "status")
	if err := out.Err(); err != nil {
		return &CommandError{Op: "connect", Err: err}
	}
	return nil
}

// Kick disconnects a player and records the action.
func (c *Coordinator) Kick(ctx context.Context, srv Server, actor string, req KickRequest) error {
	if req.UserID < 0 {
		return ErrInvalidUserID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultKickReason
	}

	out := c.exec.Execute(ctx, srv.Addr, c.dialect(srv).KickCommand(req.UserID, reason))
	if err := out.Err(); err != nil {
		return &CommandError{Op: "kick", Err: err}
	}

	entry := AuditEntry{
		Actor:   actor,
		Action:  "kick_player",
		Target:  fmt.Sprintf("Server: %s, UserID: %d", srv.Name, req.UserID),
		Details: "Reason: " + reason,
	}
	if err := c.audit.Record(ctx, entry); err != nil {
		slog.Error("failed to write audit entry", "action", entry.Action, "server_id", srv.ID, "err", err)
	}
	return nil
}

// Ban bans a player on the server and schedules recording of the ban. A nil
// error means the server accepted the command; recording happens later and
// its failures are only logged.
func (c *Coordinator) Ban(ctx context.Context, srv Server, actor string, req BanRequest) error {
	if req.UserID < 0 {
		return ErrInvalidUserID
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > MaxBanMinutes {
		return ErrInvalidDuration
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultBanReason
	}
	d := c.dialect(srv)

	// Identity and IP only feed the ban record, so a failed lookup does not
	// stop the ban itself.
	target := roster.Unknown()
	if out := c.exec.Execute(ctx, srv.Addr, d.StatusCommand()); out.OK() {
		target = roster.Find(out.Body, req.UserID)
	} else {
		slog.Warn("status query before ban failed", "server_id", srv.ID, "userid", req.UserID, "err", out.Err())
	}
	if !target.Found() {
		slog.Info("ban target not found in roster, recording unknown identity", "server_id", srv.ID, "userid", req.UserID)
	}

	out := c.exec.Execute(ctx, srv.Addr, d.BanCommand(req.UserID, req.DurationMinutes, reason))
	if err := out.Err(); err != nil {
		return &CommandError{Op: "ban", Err: err}
	}

	job := BanJob{
		ID:              uuid.New().String(),
		ServerID:        srv.ID,
		ServerName:      srv.Name,
		Actor:           actor,
		UserID:          req.UserID,
		DurationMinutes: req.DurationMinutes,
		Reason:          reason,
		Target:          target,
		CreatedAt:       c.now(),
	}
	c.jobs.Submit(job)
	slog.Info("player banned", "job", job.ID, "server_id", srv.ID, "userid", req.UserID, "duration", req.DurationMinutes, "strategy", target.Strategy)
	return nil
}
