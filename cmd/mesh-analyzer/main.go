package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/meshlens/mesh-analyzer/pkg/analysis"
	"github.com/meshlens/mesh-analyzer/pkg/config"
	"github.com/meshlens/mesh-analyzer/pkg/feed"
	"github.com/meshlens/mesh-analyzer/pkg/logging"
	"github.com/meshlens/mesh-analyzer/pkg/output"
	"github.com/meshlens/mesh-analyzer/pkg/scheduler"
	"github.com/meshlens/mesh-analyzer/pkg/store"
	"github.com/meshlens/mesh-analyzer/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("mesh-analyzer", pflag.ExitOnError)
	flags.String("feed", "topology.json", "Path to the topology JSON document")
	flags.Bool("watch", true, "Re-ingest the feed file when it changes")
	flags.Bool("web", false, "Start the web server instead of printing a report")
	flags.Int("port", 8080, "Port for the web server (only used with --web)")
	flags.String("verbosity", "", "Log level: debug, info, warn, error")
	flags.CountP("verbose", "v", "Increase log verbosity (-v for debug)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.SetLevel(logLevel(cfg))

	st := store.New()
	opts := analysis.Options{
		MaxPaths:   cfg.Paths.MaxPaths,
		MaxDepth:   cfg.Paths.MaxDepth,
		Weights:    cfg.Weights,
		Thresholds: cfg.SPOF,
		Render:     cfg.Render,
	}

	if cfg.WebMode {
		runServer(cfg, st, opts)
		return
	}

	// One-shot CLI mode: load the document, analyze once, print the report
	fileFeed, err := feed.NewFileFeed(cfg.Feed, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := fileFeed.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	snap := st.Current()
	vm := analysis.Run(snap, "", opts)
	output.PrintMeshReport(cfg.Feed, snap, vm)
}

func runServer(cfg *config.Config, st *store.Store, opts analysis.Options) {
	ctx := context.Background()

	sched := scheduler.New(st, opts, cfg.Debounce.QuietPeriod, cfg.Debounce.MaxWait)
	server := web.NewServer(st, sched)
	sched.OnRecompute(server.PublishViewModel)

	if cfg.Feed != "" {
		fileFeed, err := feed.NewFileFeed(cfg.Feed, st)
		if err != nil {
			logging.Fatal("failed to create feed", "error", err)
		}
		if cfg.Watch {
			if err := fileFeed.Start(ctx); err != nil {
				// The HTTP ingest endpoints still work without the file feed
				logging.Warn("file feed unavailable, relying on HTTP ingest", "error", err)
			}
		} else if err := fileFeed.Load(); err != nil {
			logging.Warn("initial topology load failed", "error", err)
		}
	}

	sched.Start(ctx)

	if err := server.Start(cfg.Port); err != nil {
		logging.Fatal("web server failed", "error", err)
	}
}

func logLevel(cfg *config.Config) slog.Level {
	switch cfg.Verbosity {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if cfg.VerboseCnt > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
