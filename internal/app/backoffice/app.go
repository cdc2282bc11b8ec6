package backoffice

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	accountrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/account/postgres"
	auditrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/audit/postgres"
	catalogrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/catalog/postgres"
	inboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/inbox/postgres"
	registrationrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/registration/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/otel"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/auditsvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/onboardingsvc"
	"github.com/corray333/backend-labs/marketplace/internal/transport/consumer"
	httptransport "github.com/corray333/backend-labs/marketplace/internal/transport/http"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/backofficeapi"
	inboxworker "github.com/corray333/backend-labs/marketplace/internal/worker/inbox"
)

// App is the admin backoffice: onboarding plus the dispatch audit feed.
type App struct {
	onboardingSvc  *onboardingsvc.OnboardingService
	auditSvc       *auditsvc.AuditService
	transport      *httptransport.HTTPTransport
	consumerTransp *consumer.Consumer
	inboxWorker    *inboxworker.Worker
	rabbitMqClient *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	metrics.Register()
	otelController := otel.MustInitOtel()
	rabbitMqClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()

	onboardingSvc := onboardingsvc.MustNewOnboardingService(
		onboardingsvc.WithRegistrationRepository(registrationrepo.NewRegistrationRepository(postgresClient.DB())),
		onboardingsvc.WithCatalogRepository(catalogrepo.NewCatalogRepository(postgresClient.DB())),
		onboardingsvc.WithAccountRepository(accountrepo.NewAccountRepository(postgresClient.DB())),
	)

	auditSvc := auditsvc.MustNewAuditService(
		auditsvc.WithAuditRepository(auditrepo.NewAuditRepository(postgresClient)),
	)

	inboxRepository := inboxrepo.NewInboxRepository(postgresClient.DB())
	consumerTransp := consumer.NewConsumer(rabbitMqClient, auditSvc, inboxRepository)
	inboxWorker := inboxworker.NewWorker(inboxRepository, auditSvc)

	transport := httptransport.NewHTTPTransport("backoffice")
	backofficeapi.RegisterRoutes(transport.Router(), onboardingSvc, auditSvc)

	return &App{
		onboardingSvc:  onboardingSvc,
		auditSvc:       auditSvc,
		transport:      transport,
		consumerTransp: consumerTransp,
		inboxWorker:    inboxWorker,
		rabbitMqClient: rabbitMqClient,
		postgresClient: postgresClient,
		otelController: otelController,
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
		slog.Info("Starting consumer")
		if err := a.consumerTransp.Run(ctx); err != nil {
			slog.Error("Consumer error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting inbox worker")
		a.inboxWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown performs graceful shutdown of all application components.
// It shuts down components sequentially: inbox worker, consumer, HTTP server,
// RabbitMQ, PostgreSQL, and OpenTelemetry.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.inboxWorker.Stop()
	slog.Info("Inbox worker stopped gracefully")

	if err := a.consumerTransp.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	} else {
		slog.Info("Consumer stopped gracefully")
	}

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

	a.postgresClient.Close()

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
