package fulfillment

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/config"
	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	outboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/outbox/postgres"
	restaurantorderrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/restaurantorder/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/otel"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/fulfillmentsvc"
	httptransport "github.com/corray333/backend-labs/marketplace/internal/transport/http"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/fulfillmentapi"
	"github.com/corray333/backend-labs/marketplace/internal/worker/reconcile"
	"github.com/spf13/viper"
)

// App is the restaurant-facing fulfillment service.
type App struct {
	fulfillmentSvc  *fulfillmentsvc.FulfillmentService
	transport       *httptransport.HTTPTransport
	reconcileWorker *reconcile.Worker
	postgresClient  *postgres.Client
	otelController  *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	metrics.Register()
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()

	syncClient := orderrecord.NewClient(config.PeerURL("order_record"), config.PeerTimeout())

	fulfillmentSvc := fulfillmentsvc.MustNewFulfillmentService(
		fulfillmentsvc.WithPostgresClient(postgresClient),
		fulfillmentsvc.WithSyncClient(syncClient),
		fulfillmentsvc.WithMaxRetries(viper.GetInt("reconcile.max_retries")),
	)

	reconcileWorker := reconcile.NewWorker(
		outboxrepo.NewOutboxRepository(postgresClient.Pool()),
		restaurantorderrepo.NewRestaurantOrderRepository(postgresClient.Pool()),
		syncClient,
		fulfillmentSvc,
	)

	transport := httptransport.NewHTTPTransport("fulfillment")
	fulfillmentapi.RegisterRoutes(transport.Router(), fulfillmentSvc)

	return &App{
		fulfillmentSvc:  fulfillmentSvc,
		transport:       transport,
		reconcileWorker: reconcileWorker,
		postgresClient:  postgresClient,
		otelController:  otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting reconcile worker")
		a.reconcileWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown stops the worker and the server before closing the pool.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.reconcileWorker.Stop()
	slog.Info("Reconcile worker stopped gracefully")

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
