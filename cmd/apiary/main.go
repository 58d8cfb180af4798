package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/mtzanidakis/apiary/internal/cron"
	"github.com/mtzanidakis/apiary/internal/ipc"
	"github.com/mtzanidakis/apiary/internal/natsbus"
	"github.com/mtzanidakis/apiary/internal/orchestrator"
	"github.com/mtzanidakis/apiary/internal/store"
	"github.com/mtzanidakis/apiary/internal/swarm"
	"github.com/mtzanidakis/apiary/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("apiary %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: apiary <command>\n\nCommands:\n  serve      Start the apiary orchestration service\n  backup     Export the journal to a compressed snapshot\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting apiary", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite journal
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	natsClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer natsClient.Close()

	// Registry with write-through journal and event sink
	sink := natsbus.NewSink(natsClient)
	reg := swarm.NewRegistry(db, sink)

	// Orchestrator with simulated execution
	exec := &orchestrator.SimulatedExecutor{Scale: cfg.Orchestrator.DurationScale}
	orch := orchestrator.New(reg, exec, sink, swarm.Strategy(cfg.Orchestrator.DefaultStrategy))

	// Command surface over NATS
	ipcSrv := ipc.NewServer(natsClient, reg, orch)
	if err := ipcSrv.Start(); err != nil {
		return fmt.Errorf("start ipc: %w", err)
	}
	defer ipcSrv.Stop()

	// Recurring schedules
	runner := cron.New(db, orch, cfg.Cron)
	go runner.Start(ctx)

	// Web API + event stream
	if cfg.Web.Enabled {
		srv := web.NewServer(reg, orch, db, natsClient, cfg.Web)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}

func runBackup(args []string) error {
	var outputPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "-f" && i+1 < len(args) {
			i++
			outputPath = args[i]
		}
	}
	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: apiary backup -f <output.json.zst>\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := db.Export(f); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	slog.Info("backup written", "path", outputPath)
	return nil
}
