package dispatch

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/config"
	"github.com/corray333/backend-labs/marketplace/internal/dal/clients/orderrecord"
	"github.com/corray333/backend-labs/marketplace/internal/dal/mongo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	dispatchrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/dispatch/mongo"
	eventpublisher "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/dispatchevents/rabbitmq"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/otel"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/dispatchsvc"
	httptransport "github.com/corray333/backend-labs/marketplace/internal/transport/http"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/dispatchapi"
	"github.com/spf13/viper"
)

// App is the courier-facing dispatch service.
type App struct {
	dispatchSvc    *dispatchsvc.DispatchService
	transport      *httptransport.HTTPTransport
	mongoClient    *mongo.Client
	rabbitMqClient *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	metrics.Register()
	otelController := otel.MustInitOtel()
	mongoClient := mongo.MustNewClient()
	rabbitMqClient := rabbitmq.MustNewClient()

	exchange := viper.GetString("rabbitmq.exchange")
	if exchange == "" {
		exchange = "dispatch.events"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dispatchSvc := dispatchsvc.MustNewDispatchService(
		dispatchsvc.WithDispatchRepository(dispatchrepo.MustNewDispatchRepository(ctx, mongoClient.Database())),
		dispatchsvc.WithEventPublisher(eventpublisher.MustNewEventPublisher(rabbitMqClient, exchange)),
		dispatchsvc.WithSyncClient(orderrecord.NewClient(config.PeerURL("order_record"), config.PeerTimeout())),
		dispatchsvc.WithDefaults(dispatch.Defaults{
			DeliveryFee:           viper.GetInt64("dispatch.default_delivery_fee_cents"),
			EstimatedDeliveryTime: viper.GetInt("dispatch.default_estimated_minutes"),
		}),
	)

	transport := httptransport.NewHTTPTransport("dispatch")
	dispatchapi.RegisterRoutes(transport.Router(), dispatchSvc)

	return &App{
		dispatchSvc:    dispatchSvc,
		transport:      transport,
		mongoClient:    mongoClient,
		rabbitMqClient: rabbitMqClient,
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

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if err := a.mongoClient.Close(ctx); err != nil {
		slog.Error("MongoDB disconnect error", "error", err)
	} else {
		slog.Info("MongoDB disconnected gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
