// Package stats samples player counts from every server and keeps a rolling
// history of them.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/roster"
	"github.com/reedfamily/rconadmin/internal/store"
)

// Sample is one player count observation.
type Sample struct {
	ServerID   int64     `json:"server_id"`
	Players    int       `json:"players"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ServerSource interface {
	ListServers(ctx context.Context) ([]store.Server, error)
}

type RosterSource interface {
	ListRoster(ctx context.Context, srv moderation.Server) ([]roster.Player, error)
}

type Config struct {
	Interval    time.Duration
	Retention   time.Duration
	Concurrency int
}

type Collector struct {
	db      *sql.DB
	servers ServerSource
	roster  RosterSource
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	latest    map[int64]Sample
	listeners map[int64][]chan Sample

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollector(db *sql.DB, servers ServerSource, roster RosterSource, cfg Config) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Collector{
		db:        db,
		servers:   servers,
		roster:    roster,
		cfg:       cfg,
		logger:    slog.With("component", "stats"),
		now:       time.Now,
		latest:    make(map[int64]Sample),
		listeners: make(map[int64][]chan Sample),
	}
}

func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		c.collect(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collect(ctx)
			}
		}
	}()

	c.logger.Info("population collector started", "interval", c.cfg.Interval)
}

func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) collect(ctx context.Context) {
	servers, err := c.servers.ListServers(ctx)
	if err != nil {
		c.logger.Error("failed to list servers", "err", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, srv := range servers {
		g.Go(func() error {
			c.sample(gctx, srv)
			return nil
		})
	}
	_ = g.Wait()

	cutoff := c.now().Add(-c.cfg.Retention).UTC()
	if _, err := c.db.ExecContext(ctx, "DELETE FROM player_counts WHERE recorded_at < ?", cutoff); err != nil {
		c.logger.Error("failed to prune player counts", "err", err)
	}
}

func (c *Collector) sample(ctx context.Context, srv store.Server) {
	players, err := c.roster.ListRoster(ctx, srv.Target())
	if err != nil {
		c.logger.Debug("population poll failed", "server_id", srv.ID, "err", err)
		return
	}

	s := Sample{ServerID: srv.ID, Players: len(players), RecordedAt: c.now().UTC().Truncate(time.Second)}
	_, err = c.db.ExecContext(ctx, "INSERT INTO player_counts (server_id, players, recorded_at) VALUES (?, ?, ?)",
		s.ServerID, s.Players, s.RecordedAt)
	if err != nil {
		c.logger.Error("failed to store player count", "server_id", srv.ID, "err", err)
	}
	c.publish(s)
}

func (c *Collector) publish(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[s.ServerID] = s
	for _, ch := range c.listeners[s.ServerID] {
		select {
		case ch <- s:
		default:
		}
	}
}

// History returns the samples for a server recorded at or after since,
// oldest first.
func (c *Collector) History(ctx context.Context, serverID int64, since time.Time) ([]Sample, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT server_id, players, recorded_at FROM player_counts WHERE server_id = ? AND recorded_at >= ? ORDER BY recorded_at",
		serverID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query player counts: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.ServerID, &s.Players, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan player count: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (c *Collector) Latest(serverID int64) (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.latest[serverID]
	return s, ok
}

// Subscribe returns a channel receiving every new sample of a server. Slow
// receivers miss samples.
func (c *Collector) Subscribe(serverID int64) chan Sample {
	ch := make(chan Sample, 1)
	c.mu.Lock()
	c.listeners[serverID] = append(c.listeners[serverID], ch)
	c.mu.Unlock()
	return ch
}

func (c *Collector) Unsubscribe(serverID int64, ch chan Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := c.listeners[serverID]
	for i, l := range listeners {
		if l == ch {
			c.listeners[serverID] = append(listeners[:i], listeners[i+1:]...)
			close(ch)
			return
		}
	}
}
