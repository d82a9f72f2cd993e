package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp, (*config.Config).Validate)

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger, m).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize ledger backend", err)
	}

	srv := apphttp.NewServer(cfg.Addr(), res.Ledger, apphttp.OptionsFromConfig(cfg, logger, m))

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting expense tracker", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := cli.ShutdownContext()
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if err := res.Cleanup(); err != nil {
		logger.Error("Ledger cleanup error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
