// Command serve starts the HTTP listener, initializes the schema, seeds
// the watched list on first boot, and starts the Scheduler.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jwolfley/gamepulse/api"
	"github.com/jwolfley/gamepulse/auth"
	"github.com/jwolfley/gamepulse/collect"
	"github.com/jwolfley/gamepulse/config"
	"github.com/jwolfley/gamepulse/gate"
	"github.com/jwolfley/gamepulse/scheduler"
	"github.com/jwolfley/gamepulse/store"
	"github.com/jwolfley/gamepulse/upstream"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, warnings, err := config.Load()
	if err != nil {
		log.Printf("serve: load config: %v", err)
		return 1
	}
	for _, w := range warnings {
		log.Printf("serve: warning: %s", w)
	}

	clients, err := cfg.Clients()
	if err != nil {
		log.Printf("serve: load clients: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Printf("serve: open store: %v", err)
		return 1
	}
	defer st.Close()

	if err := st.InitSchema(ctx); err != nil {
		log.Printf("serve: init schema: %v", err)
		return 1
	}

	up := upstream.New(cfg)
	engine := collect.New(st, up, cfg.CollectConcurrency)

	if ok, required := cfg.PoolSizeWarning(cfg.CollectConcurrency + 1); !ok {
		log.Printf("serve: warning: DB_POOL_MAX %d below recommended minimum %d", cfg.DBPoolMax, required)
	}

	if err := seedWatchedListIfEmpty(ctx, st, engine); err != nil {
		log.Printf("serve: seed watched list: %v", err)
	}

	tokens := auth.NewTokens(cfg.TokenSigningSecret, cfg.TokenTTL, cfg.TokenLeeway)
	nonces := auth.NewNonceCache(cfg.NonceCacheCap, cfg.NonceTTL)
	signer := auth.NewSigner(clients, cfg.SignatureSkew, nonces)

	sched := scheduler.New()
	registerJobs(sched, engine)

	var schedRunning bool
	sched.Start(ctx)
	schedRunning = true

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = detailErrorHandler

	e.Use(gate.BearerAuth(tokens))
	e.Use(gate.SignatureAuth(signer))

	srv := &api.Server{
		Store:       st,
		Upstream:    up,
		Tokens:      tokens,
		Signer:      signer,
		SchedulerUp: func() bool { return schedRunning },
	}
	srv.Register(e)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Printf("serve: listener error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("serve: shutdown signal received")

	schedRunning = false
	sched.Shutdown(cfg.ShutdownDrain)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrain)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("serve: http shutdown: %v", err)
	}

	return 0
}

// seedWatchedListIfEmpty seeds the watched table from upstream's
// most-played listing before the server starts accepting requests, but
// only on first boot when the table is empty. The scheduler's own
// RunAtStartup trigger on "refresh_watched_list" (registerJobs) also fires
// on every boot, but in the background after the scheduler starts; this
// synchronous seed makes sure the very first boot does not begin serving
// an empty list before that run finishes.
func seedWatchedListIfEmpty(ctx context.Context, st *store.Store, engine *collect.Engine) error {
	watched, err := st.ListWatched(ctx)
	if err != nil {
		return err
	}
	if len(watched) > 0 {
		return nil
	}
	seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err = engine.RefreshWatchedList(seedCtx)
	return err
}

func registerJobs(sched *scheduler.Scheduler, engine *collect.Engine) {
	jobs := []*scheduler.Job{
		{ID: "sample_current_counts", Name: "Collect player counts for watched games", Spec: "@every 5m",
			Run: func(ctx context.Context) error { _, err := engine.SampleCurrentCounts(ctx); return err }},
		{ID: "refresh_watched_list", Name: "Refresh watched list", Spec: "@every 1h",
			Run:          func(ctx context.Context) error { _, err := engine.RefreshWatchedList(ctx); return err },
			RunAtStartup: true},
		{ID: "enrich_game_metadata", Name: "Fill game metadata for watched games", Spec: "@every 1h",
			Run:          func(ctx context.Context) error { _, err := engine.EnrichGameMetadata(ctx); return err },
			RunAtStartup: true, StartupDelay: 2 * time.Minute},
		{ID: "rollup_hourly", Name: "Rollup hourly player count data", Spec: "@every 1h",
			Run: func(ctx context.Context) error { _, err := engine.RollupHourly(ctx); return err }},
		{ID: "rollup_daily", Name: "Rollup daily player count data", Spec: "@every 24h",
			Run: func(ctx context.Context) error { _, err := engine.RollupDaily(ctx); return err }},
		{ID: "purge_retention", Name: "Purge data past retention windows", Spec: "@every 24h",
			Run: func(ctx context.Context) error { _, err := engine.Purge(ctx); return err }},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			log.Printf("serve: register job %q: %v", j.ID, err)
		}
	}
}

// detailErrorHandler maps echo's default error shape to the spec's
// {"detail": <message>} convention.
func detailErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if !c.Response().Committed {
		if jsonErr := c.JSON(code, map[string]string{"detail": msg}); jsonErr != nil {
			log.Printf("serve: error handler: %v", jsonErr)
		}
	}
}
