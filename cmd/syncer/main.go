package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/app"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/broker"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/config"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/infra"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("CRITICAL: invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("hcw@home sync initializing...", "hcw_url", cfg.HcwBackendURL, "openmrs_fhir_url", cfg.OpenmrsFhirURL)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("CRITICAL: startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go startObservabilityServer(cfg.MetricsPort, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Sweeper.Run(ctx)
	}()

	runConsumerLoop(ctx, cfg, a, logger)

	wg.Wait()
	logger.Info("Shutdown complete")
}

func runConsumerLoop(ctx context.Context, cfg *config.Config, a *app.App, logger *slog.Logger) {
	connBackoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)
	opts := broker.ConsumerOptions{
		Exchange:   cfg.EventExchange,
		Queue:      cfg.EventQueue,
		RoutingKey: cfg.EventRoutingKey,
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, stopping consumer")
			return
		default:
		}

		consumer, err := broker.NewRabbitMQConsumer(cfg.RabbitMQURL, opts, a.Handler, a.Feedback, logger)
		if err != nil {
			metrics.RabbitMQReconnections.Inc()
			logger.Error("RabbitMQ connection failed, retrying...",
				"attempt", connBackoff.Attempts()+1,
				"error", err,
			)

			if _, err := connBackoff.Wait(ctx); err != nil {
				return
			}
			continue
		}

		connBackoff.Reset()
		logger.Info("Connected to broker, listening for change events")

		if err := consumer.Listen(ctx); err != nil {
			logger.Error("Consumer connection lost", "error", err)
		}
		consumer.Close()
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("SYNC ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
