// Package main is the entry point for the splatview viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/splatview/internal/app"
	"github.com/Faultbox/splatview/internal/config"
	"github.com/Faultbox/splatview/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("=== splatview ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error("viewer error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Log.Info("viewer closed normally")
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(cfg, logger.Log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Log.Warn("shutdown", zap.Error(err))
		}
	}()

	if args := config.Args(); len(args) > 0 {
		if err := a.Open(ctx, args[0]); err != nil {
			return err
		}
	}
	return a.Run(ctx)
}
