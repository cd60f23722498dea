package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/dulo/internal/client/cli"
	"github.com/dmitrijs2005/dulo/internal/client/config"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so os.Exit in main never skips them.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	logger, closer := logging.NewFileLogger(cfg.LogFile, cfg.LogLevel)
	defer closer.Close()

	logger.Info(ctx, "starting client", "server", cfg.ServerBaseURL, "database", cfg.DatabasePath)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to start client", "error", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app.Run(ctx)
	logger.Info(ctx, "client stopped")
	return 0
}
