// Package scheduler runs console commands on servers at cron-defined times.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/store"
)

// Actor is the audit log name used for scheduled runs.
const Actor = "scheduler"

// ServerLookup resolves a schedule's server.
type ServerLookup interface {
	GetServer(ctx context.Context, id int64) (store.Server, error)
}

type Scheduler struct {
	schedules *Store
	servers   ServerLookup
	exec      moderation.Executor
	audit     moderation.AuditLog
	logger    *slog.Logger
	parallel  int
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(schedules *Store, servers ServerLookup, exec moderation.Executor, audit moderation.AuditLog) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		servers:   servers,
		exec:      exec,
		audit:     audit,
		logger:    slog.With("component", "scheduler"),
		parallel:  4,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		// Wake at the start of every minute.
		for {
			now := time.Now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			timer := time.NewTimer(time.Until(next))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.tick(ctx, next)
			}
		}
	}()

	s.logger.Info("scheduler started")
}

// Stop cancels running commands and waits for the loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// tick runs every enabled schedule matching now.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	schedules, err := s.schedules.Enabled(ctx)
	if err != nil {
		s.logger.Error("failed to load schedules", "err", err)
		return
	}

	var due []Schedule
	for _, sc := range schedules {
		c, err := ParseCron(sc.CronExpr)
		if err != nil {
			s.logger.Warn("invalid cron expression", "schedule", sc.ID, "cron", sc.CronExpr, "err", err)
			continue
		}
		if c.Matches(now) {
			due = append(due, sc)
		}
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, sc := range due {
		g.Go(func() error {
			s.run(gctx, sc, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) run(ctx context.Context, sc Schedule, now time.Time) {
	log := s.logger.With("schedule", sc.ID, "server_id", sc.ServerID)

	srv, err := s.servers.GetServer(ctx, sc.ServerID)
	if err != nil {
		log.Error("failed to load server for schedule", "err", err)
		return
	}

	log.Info("running scheduled command", "command", sc.Command)
	out := s.exec.Execute(ctx, srv.Target().Addr, sc.Command)
	result := "ok"
	if err := out.Err(); err != nil {
		result = err.Error()
		log.Warn("scheduled command failed", "err", err)
	}

	// Record the run even if the tick was cancelled.
	wctx := context.WithoutCancel(ctx)
	if err := s.schedules.markRun(wctx, sc.ID, now); err != nil {
		log.Error("failed to record last run", "err", err)
	}
	entry := moderation.AuditEntry{
		Actor:   Actor,
		Action:  "scheduled_command",
		Target:  fmt.Sprintf("Server: %s, Schedule: %s", srv.Name, sc.Name),
		Details: fmt.Sprintf("Command: %s, Result: %s", sc.Command, result),
	}
	if err := s.audit.Record(wctx, entry); err != nil {
		log.Error("failed to write audit entry", "action", entry.Action, "err", err)
	}
}
