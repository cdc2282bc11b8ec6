package storefront

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/config"
	dispatchclient "github.com/corray333/backend-labs/marketplace/internal/dal/clients/dispatch"
	fulfillmentclient "github.com/corray333/backend-labs/marketplace/internal/dal/clients/fulfillment"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	orderrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/order/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/otel"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	httptransport "github.com/corray333/backend-labs/marketplace/internal/transport/http"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/storefrontapi"
)

// App is the order-of-record service.
type App struct {
	orderSvc       *ordersvc.OrderService
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	metrics.Register()
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()

	timeout := config.PeerTimeout()
	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithOrderRepository(orderrepo.NewOrderRepository(postgresClient.Pool())),
		ordersvc.WithDispatchClient(dispatchclient.NewClient(config.PeerURL("dispatch"), timeout)),
		ordersvc.WithFulfillmentClient(fulfillmentclient.NewClient(config.PeerURL("fulfillment"), timeout)),
	)

	transport := httptransport.NewHTTPTransport("storefront")
	storefrontapi.RegisterRoutes(transport.Router(), orderSvc)

	return &App{
		orderSvc:       orderSvc,
		transport:      transport,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

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
