// Package collect is the Collection Engine: the job bodies the Scheduler
// invokes, fanning out to the Upstream Client under a bounded concurrency
// budget and writing results back through the Store.
package collect

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jwolfley/gamepulse/htmlclean"
	"github.com/jwolfley/gamepulse/store"
	"github.com/jwolfley/gamepulse/upstream"
)

// Stats reports what happened during a single job run, mirroring the
// teacher's RefreshStats shape.
type Stats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Engine holds the dependencies every collection job needs.
type Engine struct {
	Store       *store.Store
	Upstream    *upstream.Client
	Concurrency int64
}

// New builds an Engine with the given fan-out concurrency budget.
func New(s *store.Store, u *upstream.Client, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{Store: s, Upstream: u, Concurrency: int64(concurrency)}
}

const (
	perCallTimeout = 10 * time.Second
	storeTimeout   = 5 * time.Second

	sampleCurrentCountsCap = 4 * time.Minute
	refreshWatchedListCap  = 5 * time.Minute
)

// SampleCurrentCounts fetches the current player count for every watched
// id and records a raw sample plus an updated last_count. Ids whose fetch
// fails are counted as failures and otherwise skipped; ids already
// up-to-date this tick are not special-cased (spec has no dedup window
// narrower than the job cadence itself). The whole run is capped at
// sampleCurrentCountsCap; hitting that cap is not an error, it ends the
// run with whatever progress was made so far.
func (e *Engine) SampleCurrentCounts(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, sampleCurrentCountsCap)
	defer cancel()

	watched, err := e.Store.ListWatched(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("collect: sample_current_counts: overall timeout before listing watched ids")
			return Stats{}, nil
		}
		return Stats{}, err
	}
	if len(watched) == 0 {
		return Stats{}, nil
	}

	sem := semaphore.NewWeighted(e.Concurrency)
	results := make(chan bool, len(watched))
	now := time.Now().Unix()

	for _, w := range watched {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- false
			continue
		}
		go func(id int64, name string) {
			defer sem.Release(1)
			results <- e.sampleOne(ctx, id, name, now)
		}(w.ID, w.Name)
	}

	stats := Stats{}
	for range watched {
		if <-results {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Printf("collect: sample_current_counts: overall timeout, returning partial progress: %+v", stats)
	}
	return stats, nil
}

func (e *Engine) sampleOne(ctx context.Context, id int64, name string, now int64) bool {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	count, err := e.Upstream.GetPlayerCount(callCtx, id)
	if err != nil {
		log.Printf("collect: sample %d (%s): %v", id, name, err)
		return false
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := e.Store.InsertRaw(storeCtx, id, now, count.PlayerCount); err != nil {
		log.Printf("collect: insert raw %d: %v", id, err)
		return false
	}
	if err := e.Store.UpsertWatched(storeCtx, id, name, count.PlayerCount); err != nil {
		log.Printf("collect: update last_count %d: %v", id, err)
		return false
	}
	return true
}

// RefreshWatchedList pulls the current most-played listing and upserts
// every entry into the watched table, seeding names where possible. The
// whole run is capped at refreshWatchedListCap; hitting that cap is not
// an error, it ends the run with whatever progress was made so far.
func (e *Engine) RefreshWatchedList(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshWatchedListCap)
	defer cancel()

	callCtx, callCancel := context.WithTimeout(ctx, 30*time.Second)
	defer callCancel()

	entries, err := e.Upstream.GetMostPlayed(callCtx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Printf("collect: refresh_watched_list: overall timeout before fetching most-played list")
			return Stats{}, nil
		}
		return Stats{}, err
	}
	if len(entries) == 0 {
		return Stats{}, nil
	}

	sem := semaphore.NewWeighted(e.Concurrency)
	results := make(chan bool, len(entries))

	for _, entry := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- false
			continue
		}
		go func(appID int64, fallbackName string, count int64) {
			defer sem.Release(1)
			results <- e.refreshOne(ctx, appID, fallbackName, count)
		}(entry.AppID, entry.Name, entry.PlayerCount)
	}

	stats := Stats{}
	for range entries {
		if <-results {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Printf("collect: refresh_watched_list: overall timeout, returning partial progress: %+v", stats)
	}
	return stats, nil
}

func (e *Engine) refreshOne(ctx context.Context, appID int64, name string, count int64) bool {
	if name == "" {
		callCtx, callCancel := context.WithTimeout(ctx, perCallTimeout)
		if detail, err := e.Upstream.GetAppDetail(callCtx, appID); err == nil {
			name = detail.Name
		}
		callCancel()
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if name == "" {
		name = "unknown"
	}
	if err := e.Store.UpsertWatched(storeCtx, appID, name, count); err != nil {
		log.Printf("collect: upsert watched %d: %v", appID, err)
		return false
	}
	return true
}

// EnrichGameMetadata fetches catalog details for every watched id and
// upserts the scalar fields plus a replaced genre/category set.
func (e *Engine) EnrichGameMetadata(ctx context.Context) (Stats, error) {
	watched, err := e.Store.ListWatched(ctx)
	if err != nil {
		return Stats{}, err
	}
	if len(watched) == 0 {
		return Stats{}, nil
	}

	sem := semaphore.NewWeighted(e.Concurrency)
	results := make(chan bool, len(watched))

	for _, w := range watched {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- false
			continue
		}
		go func(id int64) {
			defer sem.Release(1)
			results <- e.enrichOne(ctx, id)
		}(w.ID)
	}

	stats := Stats{}
	for range watched {
		if <-results {
			stats.Succeeded++
		} else {
			stats.Skipped++
		}
	}
	return stats, nil
}

func (e *Engine) enrichOne(ctx context.Context, id int64) bool {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	detail, err := e.Upstream.GetAppDetail(callCtx, id)
	if err != nil {
		if err == upstream.ErrNotFound {
			return true
		}
		log.Printf("collect: enrich %d: %v", id, err)
		return false
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	upsert := store.MetadataUpsert{
		GameMetadata: store.GameMetadata{
			ID:                 id,
			Name:               detail.Name,
			Description:        htmlclean.Strip(detail.Description),
			HeaderImageURL:     detail.HeaderImageURL,
			BackgroundImageURL: detail.BackgroundImageURL,
			ReleaseDate:        detail.ReleaseDate,
			Price:              detail.Price,
			IsFree:             detail.IsFree,
			Genres:             detail.Genres,
			Categories:         detail.Categories,
		},
		Replace: true,
	}
	if err := e.Store.UpsertMetadata(storeCtx, upsert); err != nil {
		log.Printf("collect: upsert metadata %d: %v", id, err)
		return false
	}
	return true
}

// RollupHourly delegates to the Store's hourly rollup over the trailing
// hour window.
func (e *Engine) RollupHourly(ctx context.Context) (Stats, error) {
	now := time.Now().Unix()
	since := now - 3600
	n, err := e.Store.RollupHourly(ctx, since, now, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Succeeded: n}, nil
}

// RollupDaily delegates to the Store's daily rollup over the trailing day.
func (e *Engine) RollupDaily(ctx context.Context) (Stats, error) {
	now := time.Now().Unix()
	since := now - 86400
	n, err := e.Store.RollupDaily(ctx, since, now, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Succeeded: n}, nil
}

// Purge delegates to the Store's retention purge using real wall-clock
// time, never a monotonic clock — see store.Purge's doc comment.
func (e *Engine) Purge(ctx context.Context) (Stats, error) {
	if err := e.Store.Purge(ctx, time.Now().Unix()); err != nil {
		return Stats{}, err
	}
	return Stats{Succeeded: 1}, nil
}
