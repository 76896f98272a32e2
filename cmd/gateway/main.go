// Command gateway is the process entrypoint: it loads configuration,
// builds the logger and named sinks, and hands control to the
// orchestrator until a shutdown signal arrives. Grounded on the teacher's
// cmd/validator/main.go shape (load config → build logger → construct
// core → run until signal → exit non-zero on fatal startup error).
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"aero-gateway/internal/config"
	"aero-gateway/internal/logging"
	"aero-gateway/internal/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.NewBaseLogger(cfg.Logging.DebugLogEnabled)
	defer logger.Sync()

	sinks, err := buildSinks(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logging sinks: %w", err)
	}

	orch := orchestrator.New(cfg, logger, sinks, orchestrator.Options{})
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator exited with error", zap.Error(err))
		return err
	}
	return nil
}

func buildSinks(cfg config.LoggingConfig) (*logging.Sinks, error) {
	price, err := logging.NewSink("price", cfg.Price.File, cfg.Price.Enabled)
	if err != nil {
		return nil, err
	}
	system, err := logging.NewSink("system", cfg.System.File, cfg.System.Enabled)
	if err != nil {
		return nil, err
	}
	trade, err := logging.NewSink("trade", cfg.Trade.File, cfg.Trade.Enabled)
	if err != nil {
		return nil, err
	}
	return &logging.Sinks{Price: price, System: system, Trade: trade}, nil
}
