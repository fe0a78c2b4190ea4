package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CoinPull/internal/di"
	"CoinPull/internal/domain/models"
	"CoinPull/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path (empty for defaults)")
	once := flag.Bool("once", false, "run a single acquisition, print the snapshot as JSON and exit")
	demo := flag.Bool("demo", false, "with -once, use generated demo data instead of the remote API")
	horizon := flag.Int("horizon", 0, "with -once, forecast horizon in days (default from config)")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *once {
		mode := models.ModeLive
		if *demo {
			mode = models.ModeDemo
		}
		os.Exit(runOnce(cfg, mode, *horizon))
	}

	log.Printf("env=%s addr=%s cache=%s kafka=%t", cfg.Environment, cfg.Addr(), cfg.Cache.Backend, cfg.Kafka.Enabled)

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

// runOnce performs one acquisition, streaming progress to stderr and the
// resulting snapshot to stdout.
func runOnce(cfg *config.Config, mode models.Mode, horizon int) int {
	svc, cleanup, err := di.InitializeAnalysis(cfg)
	if err != nil {
		log.Printf("analysis initialization failed: %v", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := log.New(os.Stderr, "", log.LstdFlags)
	snap, err := svc.RefreshSync(ctx, models.RefreshRequest{Mode: string(mode), Horizon: horizon}, func(ev models.ProgressEvent) {
		progress.Printf("[%s] %s", ev.Kind, ev.Message)
	})
	if err != nil {
		progress.Printf("acquisition failed: %s", models.UserMessage(err))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		progress.Printf("encode snapshot: %v", err)
		return 1
	}
	return 0
}
