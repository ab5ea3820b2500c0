// Command retention is the operator CLI for schema bootstrap and
// one-off watched-list/collection maintenance: init, watch-seed-top,
// watch-add, watch-rm, watch-list, watch-refresh-tags, collect-once.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jwolfley/gamepulse/collect"
	"github.com/jwolfley/gamepulse/config"
	"github.com/jwolfley/gamepulse/store"
	"github.com/jwolfley/gamepulse/upstream"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: retention <init|watch-seed-top|watch-add|watch-rm|watch-list|watch-refresh-tags|collect-once> [flags]")
		return 1
	}

	cfg, warnings, err := config.Load()
	if err != nil {
		log.Printf("retention: load config: %v", err)
		return 1
	}
	for _, w := range warnings {
		log.Printf("retention: warning: %s", w)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Printf("retention: open store: %v", err)
		return 1
	}
	defer st.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return cmdInit(ctx, st)
	case "watch-seed-top":
		return cmdWatchSeedTop(ctx, st, cfg, rest)
	case "watch-add":
		return cmdWatchAdd(ctx, st, rest)
	case "watch-rm":
		return cmdWatchRm(ctx, st, rest)
	case "watch-list":
		return cmdWatchList(ctx, st)
	case "watch-refresh-tags":
		return cmdWatchRefreshTags(ctx, st, cfg)
	case "collect-once":
		return cmdCollectOnce(ctx, st, cfg)
	default:
		fmt.Fprintf(os.Stderr, "retention: unknown subcommand %q\n", cmd)
		return 1
	}
}

func cmdInit(ctx context.Context, st *store.Store) int {
	if err := st.InitSchema(ctx); err != nil {
		log.Printf("retention: init schema: %v", err)
		return 1
	}
	fmt.Println("schema initialized")
	return 0
}

func cmdWatchSeedTop(ctx context.Context, st *store.Store, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("watch-seed-top", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum number of games to seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	up := upstream.New(cfg)
	entries, err := up.GetMostPlayed(ctx)
	if err != nil {
		log.Printf("retention: fetch most played: %v", err)
		return 1
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	seeded := 0
	for _, e := range entries {
		name := e.Name
		if name == "" {
			if detail, err := up.GetAppDetail(ctx, e.AppID); err == nil {
				name = detail.Name
			}
		}
		if name == "" {
			name = "unknown"
		}
		if err := st.UpsertWatched(ctx, e.AppID, name, e.PlayerCount); err != nil {
			log.Printf("retention: seed %d: %v", e.AppID, err)
			continue
		}
		seeded++
	}
	fmt.Printf("seeded %d games\n", seeded)
	return 0
}

func cmdWatchAdd(ctx context.Context, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("watch-add", flag.ContinueOnError)
	title := fs.String("title", "", "display name for the watched id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: retention watch-add <id> [--title NAME]")
		return 1
	}
	idArg := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return 1
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "retention: invalid id %q\n", idArg)
		return 1
	}
	name := *title
	if name == "" {
		name = fmt.Sprintf("app-%d", id)
	}
	if err := st.UpsertWatched(ctx, id, name, 0); err != nil {
		log.Printf("retention: add %d: %v", id, err)
		return 1
	}
	fmt.Printf("added %d\n", id)
	return 0
}

func cmdWatchRm(ctx context.Context, st *store.Store, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: retention watch-rm <id>")
		return 1
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "retention: invalid id %q\n", args[0])
		return 1
	}
	if err := st.RemoveWatched(ctx, id); err != nil {
		log.Printf("retention: remove %d: %v", id, err)
		return 1
	}
	fmt.Printf("removed %d\n", id)
	return 0
}

func cmdWatchList(ctx context.Context, st *store.Store) int {
	watched, err := st.ListWatched(ctx)
	if err != nil {
		log.Printf("retention: list: %v", err)
		return 1
	}
	for _, w := range watched {
		fmt.Printf("%d\t%s\t%d\n", w.ID, w.Name, w.LastCount)
	}
	return 0
}

func cmdWatchRefreshTags(ctx context.Context, st *store.Store, cfg config.Config) int {
	up := upstream.New(cfg)
	engine := collect.New(st, up, cfg.CollectConcurrency)
	stats, err := engine.EnrichGameMetadata(ctx)
	if err != nil {
		log.Printf("retention: refresh tags: %v", err)
		return 1
	}
	fmt.Printf("refreshed %d, skipped %d\n", stats.Succeeded, stats.Skipped)
	return 0
}

func cmdCollectOnce(ctx context.Context, st *store.Store, cfg config.Config) int {
	up := upstream.New(cfg)
	engine := collect.New(st, up, cfg.CollectConcurrency)
	stats, err := engine.SampleCurrentCounts(ctx)
	if err != nil {
		log.Printf("retention: collect once: %v", err)
		return 1
	}
	fmt.Printf("succeeded %d, failed %d\n", stats.Succeeded, stats.Failed)
	return 0
}
