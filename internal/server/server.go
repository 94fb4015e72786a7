// Package server wires the stores, background workers and HTTP routes into
// one process.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/reedfamily/rconadmin/internal/api"
	"github.com/reedfamily/rconadmin/internal/auth"
	"github.com/reedfamily/rconadmin/internal/backup"
	"github.com/reedfamily/rconadmin/internal/config"
	_ "github.com/reedfamily/rconadmin/internal/game/source"
	_ "github.com/reedfamily/rconadmin/internal/game/sourcemod"
	"github.com/reedfamily/rconadmin/internal/moderation"
	"github.com/reedfamily/rconadmin/internal/rcon"
	"github.com/reedfamily/rconadmin/internal/scheduler"
	"github.com/reedfamily/rconadmin/internal/stats"
	"github.com/reedfamily/rconadmin/internal/steamid"
	"github.com/reedfamily/rconadmin/internal/store"
)

const maxBodyBytes = 1 << 20

// ShutdownTimeout bounds Stop during process exit.
const ShutdownTimeout = 10 * time.Second

type Server struct {
	cfg        *config.Config
	db         *sql.DB
	router     chi.Router
	reconciler *moderation.Reconciler
	collector  *stats.Collector
	scheduler  *scheduler.Scheduler
	redis      *redis.Client
}

func New(ctx context.Context, cfg *config.Config, db *sql.DB) (*Server, error) {
	client := rcon.NewClient(cfg.RCON.DialTimeout, cfg.RCON.Timeout)

	authSvc := auth.NewService(db, cfg.SessionTTL)
	if err := authSvc.EnsureDefaultAdmin(ctx, cfg.DefaultUser, cfg.DefaultPass); err != nil {
		return nil, fmt.Errorf("ensure default admin: %w", err)
	}
	if n, err := authSvc.PurgeExpired(ctx); err != nil {
		slog.Warn("failed to purge expired sessions", "err", err)
	} else if n > 0 {
		slog.Info("purged expired sessions", "count", n)
	}

	s := &Server{cfg: cfg, db: db}
	resolver := steamid.NewResolver(s.vanityLookup())

	inv := store.NewInventory(db)
	bans := store.NewBans(db)
	audit := store.NewAuditLog(db)
	schedules := scheduler.NewStore(db)

	s.reconciler = moderation.NewReconciler(resolver, bans, audit, moderation.ReconcilerConfig{
		Workers:     cfg.Reconciler.Workers,
		TaskTimeout: cfg.Reconciler.TaskTimeout,
	})
	coord := moderation.NewCoordinator(client, audit, s.reconciler)
	s.collector = stats.NewCollector(db, inv, coord, stats.Config{
		Interval:    cfg.Population.Interval,
		Retention:   cfg.Population.Retention,
		Concurrency: cfg.Population.Concurrency,
	})
	s.scheduler = scheduler.New(schedules, inv, client, audit)

	authHandler := api.NewAuthHandler(authSvc)
	serverHandler := api.NewServerHandler(inv, audit)
	moderationHandler := api.NewModerationHandler(inv, coord)
	banHandler := api.NewBanHandler(bans, audit)
	logHandler := api.NewLogHandler(audit)
	scheduleHandler := api.NewScheduleHandler(inv, schedules)
	populationHandler := api.NewPopulationHandler(inv, s.collector)
	consoleHandler := api.NewConsoleHandler(inv, client, audit)
	backupHandler := api.NewBackupHandler(backup.NewService(db, filepath.Join(cfg.DataDir, "backups"), cfg.Backup.Keep), audit)

	loginLimiter := api.NewRateLimiter(rate.Limit(float64(cfg.Login.PerMinute)/60), cfg.Login.Burst)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(api.MaxBytesMiddleware(maxBodyBytes))

		r.With(api.RateLimitMiddleware(loginLimiter)).Post("/auth/login", authHandler.Login)

		// Websockets pass the token as ?token=, which AuthMiddleware accepts.
		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Get("/games", serverHandler.Games)

			r.Get("/server-groups", serverHandler.ListGroups)
			r.Post("/server-groups", serverHandler.CreateGroup)
			r.Delete("/server-groups/{id}", serverHandler.DeleteGroup)

			r.Route("/servers", func(r chi.Router) {
				r.Post("/", serverHandler.Create)
				r.Post("/check", moderationHandler.Check)
				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", serverHandler.Update)
					r.Delete("/", serverHandler.Delete)

					r.Get("/players", moderationHandler.Players)
					r.Post("/kick", moderationHandler.Kick)
					r.Post("/ban", moderationHandler.Ban)

					r.Get("/population", populationHandler.History)
					r.Get("/population/live", populationHandler.Live)
					r.Get("/console", consoleHandler.Handle)

					r.Get("/schedules", scheduleHandler.List)
					r.Post("/schedules", scheduleHandler.Create)
					r.Put("/schedules/{scheduleId}", scheduleHandler.Update)
					r.Delete("/schedules/{scheduleId}", scheduleHandler.Delete)
				})
			})

			r.Get("/bans", banHandler.List)
			r.Get("/bans/{id}", banHandler.Get)
			r.Post("/bans/{id}/unban", banHandler.Unban)

			r.Get("/logs", logHandler.List)

			r.Get("/backups", backupHandler.List)
			r.Post("/backups", backupHandler.Create)
			r.Get("/backups/{backupId}", backupHandler.Download)
			r.Delete("/backups/{backupId}", backupHandler.Delete)
		})
	})

	s.router = r
	return s, nil
}

// vanityLookup builds the Steam Web API client, cached in redis when
// configured. It returns nil when no API key is set.
func (s *Server) vanityLookup() steamid.VanityLookup {
	if s.cfg.Steam.APIKey == "" {
		slog.Info("steam api key not set, vanity names will not be resolved")
		return nil
	}
	var lookup steamid.VanityLookup = steamid.NewWebAPI(steamid.WebAPIConfig{
		APIKey:            s.cfg.Steam.APIKey,
		BaseURL:           s.cfg.Steam.BaseURL,
		Timeout:           s.cfg.Steam.Timeout,
		RequestsPerSecond: s.cfg.Steam.RequestsPerSecond,
		Burst:             s.cfg.Steam.Burst,
	})
	if s.cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		lookup = steamid.NewRedisCache(s.redis, lookup, s.cfg.Redis.TTL)
		slog.Info("caching vanity lookups in redis", "addr", s.cfg.Redis.Addr)
	}
	return lookup
}

func (s *Server) Router() chi.Router {
	return s.router
}

// Start launches the background workers.
func (s *Server) Start() {
	s.reconciler.Start()
	s.collector.Start()
	s.scheduler.Start()
}

// Stop halts the workers, waiting at most until ctx expires for in-flight ban
// records.
func (s *Server) Stop(ctx context.Context) error {
	s.collector.Stop()
	s.scheduler.Stop()
	err := s.reconciler.Stop(ctx)
	if s.redis != nil {
		err = errors.Join(err, s.redis.Close())
	}
	return err
}
