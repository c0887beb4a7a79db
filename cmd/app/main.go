package main

import (
	"flag"
	"fmt"
	"os"

	"FinSqueeze/internal/di"
	"FinSqueeze/pkg/config"
	applogger "FinSqueeze/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	boot := applogger.NewWriter(os.Stderr)
	boot.Info("starting finsqueeze",
		applogger.String("env", cfg.Environment),
		applogger.Int("port", cfg.Server.Port),
		applogger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		applogger.Bool("kafka", cfg.Kafka.Enabled),
		applogger.Bool("redis", cfg.Redis.Enabled),
		applogger.Bool("finnhub", cfg.Finnhub.Enabled))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		boot.Error("app stopped with error", applogger.Error(err))
		os.Exit(1)
	}
}
