// Command landscaper generates a random terrain on the in-memory mesh
// kernel and optionally exports it as OBJ.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/landscaper/internal/api"
	"github.com/talgya/landscaper/internal/config"
	"github.com/talgya/landscaper/internal/journal"
	"github.com/talgya/landscaper/internal/mesh"
	"github.com/talgya/landscaper/internal/terrain"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file (defaults when empty)")
		seed        = flag.Int64("seed", 0, "random seed (0 picks one)")
		objPath     = flag.String("obj", "", "write the scene to this OBJ file")
		journalPath = flag.String("journal", "", "record the run in this SQLite journal (overrides config)")
		history     = flag.Int("history", 0, "print the N most recent journaled runs and exit")
		writeConfig = flag.String("write-config", "", "write the default config to this path and exit")
		serve       = flag.String("serve", "", "serve the HTTP API on this address instead of generating once")
		verbose     = flag.Bool("v", false, "debug logging")
		low         = flag.Bool("low", false, "small grid, one cave, no extra smoothing")
		detail      = flag.Bool("detail", false, "lay simplex detail over the fractal")
		noTrees     = flag.Bool("no-trees", false, "skip tree scattering")
		noSea       = flag.Bool("no-sea", false, "skip the water volume")
		noMountains = flag.Bool("no-mountains", false, "skip mountains")
		noCube      = flag.Bool("no-cube", false, "leave the terrain open (implies -no-caves)")
		noCaves     = flag.Bool("no-caves", false, "skip caves")
		noTrench    = flag.Bool("no-trench", false, "skip the trench")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *writeConfig != "" {
		if err := config.WriteDefault(*writeConfig); err != nil {
			slog.Error("failed to write config", "error", err)
			os.Exit(1)
		}
		slog.Info("default config written", "path", *writeConfig)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Journal ───────────────────────────────────────────────────────
	var db *journal.DB
	if cfg.Journal.Path != "" {
		db, err = openJournal(cfg.Journal.Path)
		if err != nil {
			slog.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Debug("journal opened", "path", cfg.Journal.Path)
	}

	if *history > 0 {
		if db == nil {
			slog.Error("-history needs a journal")
			os.Exit(1)
		}
		if err := printHistory(ctx, db, *history); err != nil {
			slog.Error("failed to read journal", "error", err)
			os.Exit(1)
		}
		return
	}

	if *serve != "" {
		srv := &api.Server{
			Config:   *cfg,
			DB:       db,
			Addr:     *serve,
			AdminKey: os.Getenv("LANDSCAPER_ADMIN_KEY"),
			Limiter:  api.NewRateLimiter(30, time.Hour),
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		slog.Info("HTTP API stopped")
		return
	}

	// ── Generate ──────────────────────────────────────────────────────
	kernel := mesh.NewMemory()
	var lastStatus string
	session := terrain.NewSession(kernel,
		terrain.WithConfig(*cfg),
		terrain.WithSeed(*seed),
		terrain.WithLogger(logger),
		terrain.WithProgress(mesh.ProgressFunc(func(percent float64, status string) {
			if status != lastStatus {
				lastStatus = status
				slog.Debug("progress", "status", status)
			}
		})),
	)

	opts := terrain.RandomOptions{
		Trees:      !*noTrees,
		Sea:        !*noSea,
		Mountains:  !*noMountains,
		LowSubdivs: *low,
		Solidify:   !*noCube,
		Caves:      !*noCube && !*noCaves,
		Trench:     !*noTrench,
		Detail:     *detail,
	}
	slog.Info("generating terrain", "seed", session.Seed(), "low", opts.LowSubdivs)

	start := time.Now()
	rep, err := session.Random(ctx, opts)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, terrain.ErrCancelled) {
			slog.Warn("generation cancelled", "after", elapsed.Round(time.Millisecond), "dirty", session.Dirty())
		} else {
			slog.Error("generation failed", "error", err)
		}
		os.Exit(1)
	}
	for _, w := range rep.Warnings {
		slog.Warn("asset warning", "detail", w.String())
	}

	stats := session.Stats()
	slog.Info("terrain ready",
		"seed", session.Seed(),
		"vertices", humanize.Comma(int64(stats.Vertices)),
		"faces", humanize.Comma(int64(stats.Faces)),
		"trees", rep.Trees,
		"mountains", rep.Mountains,
		"caves", len(rep.Caves),
		"water", rep.Water,
		"sea_level", fmt.Sprintf("%.2f", rep.SeaLevel),
		"solid", stats.Solid,
		"took", elapsed.Round(time.Millisecond),
	)

	// ── Export ────────────────────────────────────────────────────────
	if *objPath != "" {
		if err := writeScene(kernel, session, *objPath); err != nil {
			slog.Error("failed to write OBJ", "error", err)
			os.Exit(1)
		}
		if fi, err := os.Stat(*objPath); err == nil {
			slog.Info("scene written", "path", *objPath, "size", humanize.Bytes(uint64(fi.Size())))
		}
	}

	if db != nil {
		run := journal.Run{
			Seed:      session.Seed(),
			Vertices:  stats.Vertices,
			Faces:     stats.Faces,
			Instances: rep.Trees + stats.Buildings,
			Caves:     len(rep.Caves),
			Water:     rep.Water,
			Duration:  elapsed,
		}
		for _, w := range rep.Warnings {
			run.Warnings = append(run.Warnings, w.String())
		}
		if err := run.SetOptions(opts); err != nil {
			slog.Error("failed to encode options", "error", err)
			os.Exit(1)
		}
		stored, err := db.Record(ctx, run)
		if err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		slog.Info("run journaled", "id", stored.ID)
	}
}

// openJournal opens the journal at path, creating its directory first.
func openJournal(path string) (*journal.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	return journal.Open(path)
}

func writeScene(kernel *mesh.Memory, session *terrain.Session, path string) error {
	var handles []mesh.Handle
	for _, h := range []mesh.Handle{session.Terrain(), session.Trees(), session.Buildings()} {
		if h != mesh.NoHandle {
			handles = append(handles, h)
		}
	}
	if w := session.Water(); w != nil {
		handles = append(handles, w.Handle)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := kernel.WriteOBJ(f, handles...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printHistory(ctx context.Context, db *journal.DB, n int) error {
	runs, err := db.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  seed %-20d %s verts  %s faces  %d instances  %d caves  water=%v  %s  (%s)\n",
			r.ID,
			r.Seed,
			humanize.Comma(int64(r.Vertices)),
			humanize.Comma(int64(r.Faces)),
			r.Instances,
			r.Caves,
			r.Water,
			r.Duration.Round(time.Millisecond),
			humanize.Time(r.CreatedAt),
		)
		for _, w := range r.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
	return nil
}
