package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reedfamily/rconadmin/internal/steamid"
)

const (
	DefaultWorkers     = 4
	DefaultTaskTimeout = 30 * time.Second
)

// ReconcilerConfig sizes the worker pool. Zero values select the defaults.
type ReconcilerConfig struct {
	Workers     int
	TaskTimeout time.Duration
}

// Reconciler records bans after the remote command succeeded. Jobs are queued
// without bound and processed by a fixed pool of workers; each failure is
// logged with the job id and dropped.
type Reconciler struct {
	resolver IdentityResolver
	bans     BanStore
	audit    AuditLog
	workers  int
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	queue  []BanJob
	closed bool
	notify chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
}

func NewReconciler(resolver IdentityResolver, bans BanStore, audit AuditLog, cfg ReconcilerConfig) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		resolver: resolver,
		bans:     bans,
		audit:    audit,
		workers:  cfg.Workers,
		timeout:  cfg.TaskTimeout,
		logger:   slog.With("component", "reconciler"),
		notify:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (r *Reconciler) Start() {
	r.start.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker()
		}
		r.logger.Info("reconciler started", "workers", r.workers, "task_timeout", r.timeout)
	})
}

// Submit queues job and returns immediately. Jobs submitted after Stop are
// dropped.
func (r *Reconciler) Submit(job BanJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn("reconciler stopped, dropping ban job", "job", job.ID, "server_id", job.ServerID, "userid", job.UserID)
		return
	}
	r.queue = append(r.queue, job)
	r.signal()
}

// Pending reports the number of queued jobs not yet picked up by a worker.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// signal must be called with r.mu held.
func (r *Reconciler) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Stop cancels in-flight jobs, drops queued ones and waits for the workers to
// exit or for ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	dropped := len(r.queue)
	r.queue = nil
	close(r.notify)
	r.mu.Unlock()

	r.cancel()
	if dropped > 0 {
		r.logger.Warn("dropped queued ban jobs on shutdown", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for reconciler workers: %w", ctx.Err())
	}
}

func (r *Reconciler) worker() {
	defer r.wg.Done()
	for {
		job, ok := r.next()
		if !ok {
			return
		}
		r.run(job)
	}
}

func (r *Reconciler) next() (BanJob, bool) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return BanJob{}, false
		}
		if len(r.queue) > 0 {
			job := r.queue[0]
			r.queue[0] = BanJob{}
			r.queue = r.queue[1:]
			if len(r.queue) > 0 {
				r.signal()
			}
			r.mu.Unlock()
			return job, true
		}
		r.mu.Unlock()

		select {
		case <-r.ctx.Done():
			return BanJob{}, false
		case <-r.notify:
		}
	}
}

func (r *Reconciler) run(job BanJob) {
	log := r.logger.With("job", job.ID, "server_id", job.ServerID, "userid", job.UserID)
	defer func() {
		if v := recover(); v != nil {
			log.Error("ban job panicked", "panic", v)
		}
	}()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	id, err := r.resolver.Resolve(ctx, job.Target.Identity)
	if err != nil {
		log.Warn("identity resolution failed, storing raw identity", "identity", job.Target.Identity, "err", err)
	}
	rec := Record(job, id)

	if banID, err := r.bans.InsertBan(ctx, rec); err != nil {
		log.Error("failed to store ban", "err", err)
	} else {
		log.Info("ban recorded", "ban_id", banID, "steam_id", rec.SteamID, "ip", rec.IP)
	}

	entry := AuditEntry{
		Actor:   job.Actor,
		Action:  "ban_player",
		Target:  fmt.Sprintf("Server: %s, UserID: %d", job.ServerName, job.UserID),
		Details: fmt.Sprintf("Duration: %d, Reason: %s, Player: %s (%s)", job.DurationMinutes, job.Reason, job.Target.Name, job.Target.Identity),
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		log.Error("failed to write audit entry", "action", entry.Action, "err", err)
	}
}

// Record builds the ban record for job. Empty fields of id fall back to the
// raw identity taken from the roster.
func Record(job BanJob, id steamid.Identity) BanRecord {
	raw := job.Target.Identity
	return BanRecord{
		Name:            job.Target.Name,
		SteamID:         orRaw(id.ID2, raw),
		SteamID3:        orRaw(id.ID3, raw),
		SteamID64:       orRaw(id.ID64, raw),
		IP:              StripPort(job.Target.IP),
		BanType:         BanTypeIP,
		Reason:          job.Reason,
		DurationMinutes: job.DurationMinutes,
		AdminName:       job.Actor,
		ExpiresAt:       ExpiresAt(job.CreatedAt, job.DurationMinutes),
		CreatedAt:       job.CreatedAt,
		Status:          StatusActive,
		ServerID:        job.ServerID,
	}
}

func orRaw(v, raw string) string {
	if v == "" {
		return raw
	}
	return v
}
