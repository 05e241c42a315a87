// Package secrets resolves secret:// references for gateway credentials,
// backed by Google Secret Manager with a local file fallback for development.
package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackFile = ".secrets.local"
	defaultVersion      = "latest"
	meterName           = "plateroute/secrets"
)

// Transient Secret Manager failures are retried before giving up; anything
// else surfaces immediately.
var accessRetry = gax.WithRetry(func() gax.Retryer {
	return gax.OnCodes([]codes.Code{codes.Unavailable, codes.DeadlineExceeded}, gax.Backoff{
		Initial:    100 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2,
	})
})

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// accessClient is the slice of the Secret Manager API the fetcher needs.
type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references. Resolved values are cached for the
// process lifetime; credential rotation means a restart.
type Fetcher struct {
	client     accessClient
	ownsClient bool
	logger     *zap.Logger

	env            string
	defaultProject string
	fallbackFile   string

	mu    sync.Mutex
	cache map[string]string

	fallbackOnce sync.Once
	fallback     map[string]string
	fallbackErr  error

	resolves        metric.Int64Counter
	resolvesEnabled bool
}

type fetcherConfig struct {
	logger       *zap.Logger
	env          string
	project      string
	fallbackFile string
	client       accessClient
	clientOpts   []option.ClientOption
	meter        metric.Meter
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithEnvironment labels resolutions with the deployment environment.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) { cfg.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject sets the project secrets are read from unless the
// reference overrides it.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.project = strings.TrimSpace(projectID) }
}

// WithFallbackFile points at the local key=value file consulted when Secret
// Manager is unreachable or unauthorised.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackFile = strings.TrimSpace(path) }
}

// WithClientOptions forwards Cloud client options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// WithAccessClient injects a preconstructed client, primarily for tests.
func WithAccessClient(client accessClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithMeter overrides the OpenTelemetry meter used for resolution counters.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// NewFetcher builds a Fetcher. A missing Secret Manager client is not fatal;
// the fetcher then serves exclusively from the fallback file, which is the
// expected mode for local development.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		env:          defaultEnvironment,
		fallbackFile: defaultFallbackFile,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	resolves, metricErr := meter.Int64Counter(
		"secrets.resolutions",
		metric.WithDescription("Secret resolutions by source"),
	)
	if metricErr != nil {
		cfg.logger.Warn("secrets: resolution counter unavailable", zap.Error(metricErr))
	}

	f := &Fetcher{
		client:          cfg.client,
		logger:          cfg.logger,
		env:             cfg.env,
		defaultProject:  cfg.project,
		fallbackFile:    cfg.fallbackFile,
		cache:           make(map[string]string),
		resolves:        resolves,
		resolvesEnabled: metricErr == nil,
	}

	if f.client == nil {
		client, err := newSecretManagerClient(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager unavailable, serving from fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}

	return f, nil
}

// Close releases the Secret Manager client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind a secret:// reference.
func (f *Fetcher) Resolve(ctx context.Context, rawRef string) (string, error) {
	ref, err := parseRef(rawRef)
	if err != nil {
		return "", err
	}

	resource := ref.resource(f.defaultProject)

	f.mu.Lock()
	cached, hit := f.cache[resource]
	f.mu.Unlock()
	if hit {
		f.count(ctx, "cache")
		return cached, nil
	}

	if f.client != nil && ref.project(f.defaultProject) != "" {
		resp, err := f.client.AccessSecretVersion(ctx,
			&secretmanagerpb.AccessSecretVersionRequest{Name: resource}, accessRetry)
		switch {
		case err == nil:
			if resp == nil || resp.Payload == nil {
				return "", fmt.Errorf("secrets: empty payload for %s", ref.name)
			}
			value := string(resp.Payload.GetData())
			f.store(resource, value)
			f.count(ctx, "remote")
			return value, nil
		case fallbackEligible(err):
			f.logger.Debug("secrets: remote read failed, trying fallback file",
				zap.String("secret", ref.name), zap.String("env", f.env), zap.Error(err))
		default:
			f.count(ctx, "error")
			return "", fmt.Errorf("secrets: access %s: %w", ref.name, err)
		}
	}

	value, ok := f.fromFallback(ref.name)
	if !ok {
		f.count(ctx, "error")
		return "", fmt.Errorf("secrets: no value for %s", ref.name)
	}
	f.store(resource, value)
	f.count(ctx, "fallback")
	return value, nil
}

func (f *Fetcher) store(resource, value string) {
	f.mu.Lock()
	f.cache[resource] = value
	f.mu.Unlock()
}

func (f *Fetcher) count(ctx context.Context, source string) {
	if !f.resolvesEnabled {
		return
	}
	f.resolves.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("env", f.env),
	))
}

// fromFallback reads the key=value fallback file once and serves lookups by
// plain secret name.
func (f *Fetcher) fromFallback(name string) (string, bool) {
	f.fallbackOnce.Do(f.loadFallbackFile)
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback file unusable", zap.Error(f.fallbackErr))
		return "", false
	}
	value, ok := f.fallback[name]
	return value, ok
}

func (f *Fetcher) loadFallbackFile() {
	f.fallback = map[string]string{}
	if f.fallbackFile == "" {
		return
	}

	file, err := os.Open(f.fallbackFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.fallbackErr = fmt.Errorf("secrets: open %s: %w", f.fallbackFile, err)
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		// Tolerate fully qualified keys so the same file works for both
		// plain names and copied secret:// references.
		key = strings.TrimPrefix(key, "secret://")
		if key == "" {
			continue
		}
		f.fallback[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		f.fallbackErr = fmt.Errorf("secrets: read %s: %w", f.fallbackFile, err)
	}
}

// secretRef is a parsed secret://<name>[?version=N][&project=ID] reference.
type secretRef struct {
	name            string
	version         string
	projectOverride string
}

func parseRef(raw string) (secretRef, error) {
	if strings.TrimSpace(raw) == "" {
		return secretRef{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return secretRef{}, fmt.Errorf("secrets: bad reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return secretRef{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return secretRef{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}

	query := u.Query()
	ref := secretRef{
		name:            name,
		version:         strings.TrimSpace(query.Get("version")),
		projectOverride: strings.TrimSpace(query.Get("project")),
	}
	if ref.version == "" {
		ref.version = defaultVersion
	}
	return ref, nil
}

func (r secretRef) project(defaultProject string) string {
	if r.projectOverride != "" {
		return r.projectOverride
	}
	return defaultProject
}

func (r secretRef) resource(defaultProject string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", r.project(defaultProject), r.name, r.version)
}

// fallbackEligible reports whether a remote failure should be answered from
// the local file instead of surfaced. Missing secrets are never masked.
func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
