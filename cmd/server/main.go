package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/auth"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/config"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/events"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/middleware"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/service"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/storage/sqlite"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/api"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadServer()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	var federated *auth.FederatedAuthenticator
	if cfg.GoogleClientID != "" {
		validator, err := auth.NewGoogleValidator(ctx)
		if err != nil {
			return err
		}
		federated = auth.NewFederatedAuthenticator(validator, cfg.GoogleClientID, store)
		logger.Info("Google sign-in enabled")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		publisher = amqpPublisher
		logger.Info("Publishing record events", "exchange", cfg.AMQPExchange)
	}
	defer publisher.Close()

	interceptors := []connect.Interceptor{middleware.LoggingInterceptor(logger)}

	mux := http.NewServeMux()

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := middleware.NewMetrics(reg)
		interceptors = append([]connect.Interceptor{metrics.Interceptor()}, interceptors...)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), federated, jwtManager, store, logger)
	authPath, authHandler := api.NewAuthServiceHandler(authSvc,
		withInterceptors(interceptors, middleware.OptionalAuth(jwtManager)))
	mux.Handle(authPath, authHandler)

	recordSvc := service.NewRecordService(store, publisher, logger)
	recordPath, recordHandler := api.NewRecordServiceHandler(recordSvc,
		withInterceptors(interceptors, middleware.RequireAuth(jwtManager)))
	mux.Handle(recordPath, recordHandler)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		// h2c serves HTTP/2 without TLS for Connect clients.
		Handler:           h2c.NewHandler(corsMiddleware(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost:%s", cfg.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// withInterceptors runs shared first and then the service's own interceptor.
func withInterceptors(shared []connect.Interceptor, own connect.Interceptor) connect.HandlerOption {
	return connect.WithInterceptors(append(slices.Clone(shared), own)...)
}

// corsMiddleware lets browser Connect clients call the API and read Auth-Reason.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+api.AuthReasonHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
