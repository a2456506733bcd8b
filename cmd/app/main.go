package main

import (
	"flag"
	"log"
	"os"

	"LiqSweep/internal/di"
	"LiqSweep/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbol=%s feed=%s execution=%s",
		cfg.Environment, cfg.Engine.Symbol, cfg.Feed.Type, cfg.Execution.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
