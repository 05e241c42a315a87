package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/plateroute/api/internal/di"
	"github.com/plateroute/api/internal/handlers"
	"github.com/plateroute/api/internal/platform/config"
	"github.com/plateroute/api/internal/platform/observability"
	"github.com/plateroute/api/internal/platform/secrets"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("secret fetcher init", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("closing secret fetcher", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, logger, buildVersion())
	if err != nil {
		logger.Fatal("building dependency container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("closing container", zap.Error(err))
		}
	}()

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthRepository(container.Health),
		handlers.WithHealthVersion(buildVersion()),
	)

	orderHandlers := handlers.NewOrderHandlers(
		container.Authenticator,
		container.Orders,
		container.Payments,
		handlers.WithPlacementLimiter(container.PlaceLimiter),
	)
	paymentHandlers := handlers.NewPaymentHandlers(container.Authenticator, container.Payments)
	webhookHandlers := handlers.NewWebhookHandlers(container.Payments)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.Time("startedAt", startedAt),
	)
	go func() {
		serverLogger.Info("order api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("serving http", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown incomplete", zap.Error(err))
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

// newSecretFetcher wires the Secret Manager fetcher from the handful of env
// vars that must be readable before config.Load can run, since the config
// itself may contain secret:// references.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithEnvironment(envOrDefault("API_ENVIRONMENT", "local")),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(envOrDefault("API_SECRET_FALLBACK_FILE", ".secrets.local")),
	}

	project := envOrDefault("API_SECRET_DEFAULT_PROJECT_ID", os.Getenv("API_FIREBASE_PROJECT_ID"))
	if project = strings.TrimSpace(project); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if creds := strings.TrimSpace(os.Getenv("API_FIREBASE_CREDENTIALS_FILE")); creds != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(creds)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
