package main

import (
	"errors"
	"net/http"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/sheets/google"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker, (*config.Config).ValidateWorker)

	logger.Info("Starting ledger worker")

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	sheetsClient, err := google.New(ctx, google.ConfigFrom(cfg), logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	m := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	probe := &http.Server{Addr: cfg.WorkerAddr(), Handler: mux, ReadHeaderTimeout: cfg.ReadTimeout}
	go func() {
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err)
		}
	}()

	mirror := worker.NewMirrorWorker(sheetsClient, m, logger)
	if err := mirror.Run(ctx, amqpClient); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	shutdownCtx, shutdownCancel := cli.ShutdownContext()
	defer shutdownCancel()
	if err := probe.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", log.FieldError, err)
	}
	logger.Info("Ledger worker stopped")
}
