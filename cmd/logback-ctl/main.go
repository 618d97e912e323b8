// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/objectlog/logback/lib/logbackcfg"
	"github.com/objectlog/logback/logback"
	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/objectstore/fsstore"
	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/objectstore/sqlitestore"
	"github.com/objectlog/logback/shardbackend"
	"github.com/objectlog/logback/shardbackend/fifo"
	"github.com/objectlog/logback/shardbackend/omaplog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:])
	case "list":
		return runList(args[1:])
	case "new-backing":
		return runNewBacking(args[1:])
	case "empty-to":
		return runEmptyTo(args[1:])
	case "remove-empty":
		return runRemoveEmpty(args[1:])
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: logback-ctl <subcommand> [flags]

Subcommands:
  setup          Bootstrap or attach to a log's generation map
  list           Print the current generation map
  new-backing    Add a new head generation with the given backing type
  empty-to       Mark generations up to and including GEN as drained
  remove-empty   Reclaim shard objects for drained generations
  help           Show this message

Every subcommand reads its store/shard configuration from a config
file, located via --config or the LOGBACK_CONFIG environment variable.
`)
}

// configFlag adds the shared --config flag to fs and returns the bound
// value.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "path to logback.yaml (defaults to $LOGBACK_CONFIG)")
}

func loadConfig(path string) (*logbackcfg.Config, error) {
	if path != "" {
		return logbackcfg.LoadFile(path)
	}
	return logbackcfg.Load()
}

func newLogger(cfg *logbackcfg.Config) *slog.Logger {
	if cfg.Environment == logbackcfg.Production {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// buildStore constructs the objectstore.Store named by cfg.Store.
func buildStore(cfg *logbackcfg.Config) (objectstore.Store, error) {
	switch cfg.Store {
	case logbackcfg.StoreSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	case logbackcfg.StoreFS:
		return fsstore.Open(cfg.FSRoot)
	case logbackcfg.StoreMem:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store)
	}
}

// shardOID derives shard object names from the metadata object's name,
// since a deployment's config names only the metadata object itself.
func shardOID(metaOID string, genID uint64, shardIdx uint32) string {
	return fmt.Sprintf("%s.shard.%d.%d", metaOID, genID, shardIdx)
}

func defaultLogType(cfg *logbackcfg.Config) logback.LogType {
	if cfg.DefaultType == "fifo" {
		return logback.TypeFIFO
	}
	return logback.TypeOmap
}

// openRegistry builds every layer (store, shard drivers, registry) and
// runs Setup, returning a ready-to-use *logback.Generations. Callers
// are responsible for calling Close.
func openRegistry(ctx context.Context, cfg *logbackcfg.Config, logger *slog.Logger, cb logback.Callbacks) (*logback.Generations, error) {
	store, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("building object store: %w", err)
	}

	oidOf := func(genID uint64, shardIdx uint32) string { return shardOID(cfg.MetadataOID, genID, shardIdx) }

	var omap shardbackend.OmapLog = omaplog.New(store)
	var f shardbackend.FIFO = fifo.New(store)

	g, err := logback.New(store, omap, f, cfg.Shards, oidOf, cfg.MetadataOID, cb, logger)
	if err != nil {
		return nil, fmt.Errorf("constructing registry: %w", err)
	}
	if err := g.Setup(ctx, defaultLogType(cfg)); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	return g, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	g, err := openRegistry(ctx, cfg, logger, logback.Callbacks{})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	fmt.Fprintf(os.Stderr, "logback: metadata object %q ready\n", cfg.MetadataOID)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	g, err := openRegistry(ctx, cfg, logger, logback.Callbacks{})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	printGenerations(g)
	return nil
}

func printGenerations(g *logback.Generations) {
	entries := g.Entries()
	fmt.Printf("%-6s %-8s %-6s\n", "GEN", "TYPE", "EMPTY")
	for genID := uint64(0); genID <= entries.HeadGenID(); genID++ {
		e, ok := entries[genID]
		if !ok {
			continue
		}
		fmt.Printf("%-6d %-8s %-6v\n", e.GenID, e.Type, e.Empty)
	}
}

func runNewBacking(args []string) error {
	fs := flag.NewFlagSet("new-backing", flag.ExitOnError)
	configPath := configFlag(fs)
	typeName := fs.String("type", "", "backing type for the new generation: omap or fifo (required)")
	fs.Parse(args)

	var typ logback.LogType
	switch *typeName {
	case "omap":
		typ = logback.TypeOmap
	case "fifo":
		typ = logback.TypeFIFO
	default:
		fs.Usage()
		return fmt.Errorf("--type must be omap or fifo")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	g, err := openRegistry(ctx, cfg, logger, logback.Callbacks{})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	if err := g.NewBacking(ctx, typ); err != nil {
		return fmt.Errorf("new-backing: %w", err)
	}
	printGenerations(g)
	return nil
}

func runEmptyTo(args []string) error {
	fs := flag.NewFlagSet("empty-to", flag.ExitOnError)
	configPath := configFlag(fs)
	genID := fs.Uint64("gen", 0, "highest generation to mark drained (required)")
	fs.Parse(args)

	genSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "gen" {
			genSet = true
		}
	})
	if !genSet {
		fs.Usage()
		return fmt.Errorf("--gen is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	g, err := openRegistry(ctx, cfg, logger, logback.Callbacks{})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	if err := g.EmptyTo(ctx, *genID); err != nil {
		return fmt.Errorf("empty-to: %w", err)
	}
	printGenerations(g)
	return nil
}

func runRemoveEmpty(args []string) error {
	fs := flag.NewFlagSet("remove-empty", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	g, err := openRegistry(ctx, cfg, logger, logback.Callbacks{})
	if err != nil {
		return err
	}
	defer g.Close(ctx)

	if err := g.RemoveEmpty(ctx); err != nil {
		return fmt.Errorf("remove-empty: %w", err)
	}
	printGenerations(g)
	return nil
}
