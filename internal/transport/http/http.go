package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/marketplace/pkg/http/response"
	"github.com/corray333/backend-labs/marketplace/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// HTTPTransport owns the server and the router every service mounts its
// routes on.
type HTTPTransport struct {
	server *http.Server
	router *chi.Mux
}

func NewHTTPTransport(serviceName string) *HTTPTransport {
	router := NewRouter(serviceName)
	server := newServer(router)

	return &HTTPTransport{
		server: server,
		router: router,
	}
}

// Router returns the router so service packages can register their routes.
func (h *HTTPTransport) Router() chi.Router {
	return h.router
}

// Run blocks until the server stops. A graceful shutdown is not an error.
func (h *HTTPTransport) Run() error {
	slog.Info("HTTP server listening", "addr", h.server.Addr)
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// NewRouter builds the middleware chain shared by all services together with
// the health and metrics endpoints.
func NewRouter(serviceName string) *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware(serviceName))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, http.StatusOK, map[string]string{"service": serviceName})
	})
	router.Handle("/metrics", promhttp.Handler())

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
