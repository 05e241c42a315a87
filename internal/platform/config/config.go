// Package config loads runtime configuration from the environment, an
// optional .env file, and Secret Manager references.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultOrderEventsTopic = "order-events"
	defaultOrdersPerWindow  = 30
	defaultRateLimitWindow  = time.Minute
	defaultPaymentCurrency  = "USD"
	defaultShutdownGrace    = 20 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Stripe    StripeConfig
	PubSub    PubSubConfig
	RateLimit RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings used for identity checks.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StripeConfig collects payment gateway credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Currency      string
}

// PubSubConfig controls the order event publisher.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// RateLimitConfig throttles order placement per client identity.
type RateLimitConfig struct {
	OrdersPerWindow int
	Window          time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists the configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config validation failed: missing or invalid fields [" + strings.Join(e.fields, ", ") + "]"
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// env is the merged configuration source. Lookup precedence: explicit map,
// process environment, .env file.
type env struct {
	explicit  map[string]string
	useSystem bool
	dotEnv    map[string]string
}

func (e env) lookup(key string) (string, bool) {
	if value, ok := e.explicit[key]; ok {
		return value, true
	}
	if e.useSystem {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
	}
	value, ok := e.dotEnv[key]
	return value, ok
}

func (e env) str(key, fallback string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func (e env) duration(key string, fallback time.Duration) time.Duration {
	if value, ok := e.lookup(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (e env) int(key string, fallback int) int {
	if value, ok := e.lookup(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// Load assembles the application configuration from defaults, the .env file,
// environment variables, and secret resolution, then validates it.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := parseDotEnvFile(options.envFile)
	if err != nil {
		return Config{}, err
	}
	source := env{
		explicit:  options.envMap,
		useSystem: options.useSystemEnv,
		dotEnv:    dotEnv,
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            source.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:     source.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    source.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     source.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: source.duration("API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownGrace),
		},
		Firebase: FirebaseConfig{
			ProjectID:       source.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: source.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    source.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: source.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Stripe: StripeConfig{
			APIKey:        source.str("API_STRIPE_API_KEY", ""),
			WebhookSecret: source.str("API_STRIPE_WEBHOOK_SECRET", ""),
			Currency:      source.str("API_STRIPE_CURRENCY", defaultPaymentCurrency),
		},
		PubSub: PubSubConfig{
			ProjectID:        source.str("API_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: source.str("API_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
		},
		RateLimit: RateLimitConfig{
			OrdersPerWindow: source.int("API_RATELIMIT_ORDERS_PER_WINDOW", defaultOrdersPerWindow),
			Window:          source.duration("API_RATELIMIT_WINDOW", defaultRateLimitWindow),
		},
	}

	// Firestore and PubSub projects default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	for _, field := range []*string{&cfg.Stripe.APIKey, &cfg.Stripe.WebhookSecret} {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	var missing []string
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.RateLimit.OrdersPerWindow <= 0 {
		missing = append(missing, "RateLimit.OrdersPerWindow")
	}
	if cfg.RateLimit.Window <= 0 {
		missing = append(missing, "RateLimit.Window")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// resolveSecret swaps secret:// (and the older sm://) references for their
// resolved values; plain values pass through.
func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref := strings.TrimSpace(value)
	if after, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + after
	}
	if !strings.HasPrefix(ref, "secret://") {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// parseDotEnvFile reads KEY=VALUE lines, tolerating comments, blank lines,
// an `export ` prefix, and single or double quoting. A missing file is not
// an error.
func parseDotEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
