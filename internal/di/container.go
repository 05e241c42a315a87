package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/plateroute/api/internal/payments"
	"github.com/plateroute/api/internal/platform/auth"
	"github.com/plateroute/api/internal/platform/config"
	pfirestore "github.com/plateroute/api/internal/platform/firestore"
	"github.com/plateroute/api/internal/platform/jobs"
	"github.com/plateroute/api/internal/platform/observability"
	"github.com/plateroute/api/internal/platform/ratelimit"
	"github.com/plateroute/api/internal/repositories"
	firestoreRepo "github.com/plateroute/api/internal/repositories/firestore"
	"github.com/plateroute/api/internal/services"
)

// Container wires repositories, services, and transport collaborators for
// runtime use. Construction is eager; anything that fails here should stop
// the process before it starts serving.
type Container struct {
	Config config.Config
	Logger *zap.Logger

	Authenticator *auth.Authenticator
	Orders        services.OrderService
	Payments      services.PaymentService
	Health        repositories.HealthRepository
	PlaceLimiter  func(http.Handler) http.Handler

	firestoreProvider *pfirestore.Provider
	pubsubClient      *pubsub.Client
}

// NewContainer constructs the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, version string) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	c.firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := c.firestoreProvider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firestore client: %w", err)
	}

	orderRepo, err := firestoreRepo.NewOrderRepository(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise order repository: %w", err)
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise counter repository: %w", err)
	}
	userRepo, err := firestoreRepo.NewUserRepository(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise user repository: %w", err)
	}
	restaurantRepo, err := firestoreRepo.NewRestaurantRepository(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise restaurant repository: %w", err)
	}
	menuRepo, err := firestoreRepo.NewMenuRepository(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise menu repository: %w", err)
	}
	healthRepo, err := firestoreRepo.NewHealthRepository(c.firestoreProvider, version)
	if err != nil {
		return nil, fmt.Errorf("initialise health repository: %w", err)
	}
	c.Health = healthRepo

	unitOfWork, err := firestoreRepo.NewUnitOfWork(c.firestoreProvider)
	if err != nil {
		return nil, fmt.Errorf("initialise unit of work: %w", err)
	}

	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		return nil, errors.New("firebase project id is required")
	}
	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase verifier: %w", err)
	}
	c.Authenticator = auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        serviceLogger(logger.Named("stripe")),
		Clock:         time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise stripe provider: %w", err)
	}

	var publisher services.OrderEventPublisher
	if strings.TrimSpace(cfg.PubSub.ProjectID) != "" {
		c.pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialise pubsub client: %w", err)
		}
		topic := c.pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
		publisher, err = jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			return nil, fmt.Errorf("initialise order event publisher: %w", err)
		}
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      orderRepo,
		Counters:    counterRepo,
		Catalog:     menuRepo,
		Restaurants: restaurantRepo,
		Users:       userRepo,
		UnitOfWork:  unitOfWork,
		Clock:       time.Now,
		Events:      publisher,
		Logger:      serviceLogger(logger.Named("orders")),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise order service: %w", err)
	}
	c.Orders = orderService

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:      orderRepo,
		Restaurants: restaurantRepo,
		Provider:    stripeProvider,
		UnitOfWork:  unitOfWork,
		Currency:    cfg.Stripe.Currency,
		Clock:       time.Now,
		Events:      publisher,
		Logger:      serviceLogger(logger.Named("payments")),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise payment service: %w", err)
	}
	c.Payments = paymentService

	if cfg.RateLimit.OrdersPerWindow > 0 {
		store := ratelimit.NewFirestoreStore(firestoreClient)
		c.PlaceLimiter = ratelimit.Middleware(
			store,
			cfg.RateLimit.OrdersPerWindow,
			cfg.RateLimit.Window,
			ratelimit.WithLogger(observability.NewPrintfAdapter(logger.Named("ratelimit"))),
		)
	}

	return c, nil
}

// Close releases held clients. Safe to call on a nil container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub close: %w", err))
		}
	}
	if c.firestoreProvider != nil {
		if err := c.firestoreProvider.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("firestore close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// serviceLogger adapts a zap logger to the map-based hook services accept.
func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}
