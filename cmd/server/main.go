package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"footfall/server/internal/app"
)

func main() {
	cfg := app.DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "scenario file (.json, .yaml); empty uses the built-in hall")
	flag.StringVar(&cfg.World.Seed, "seed", cfg.World.Seed, "root seed for deterministic runs")
	flag.BoolVar(&cfg.LogJSON, "log-json", false, "emit structured events as JSON lines")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
