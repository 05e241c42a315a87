package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeAccessClient() *fakeAccessClient {
	return &fakeAccessClient{
		values: map[string]string{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (c *fakeAccessClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := req.GetName()
	c.calls[name]++
	if err, ok := c.errs[name]; ok {
		return nil, err
	}
	if value, ok := c.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (c *fakeAccessClient) Close() error { return nil }

func (c *fakeAccessClient) callCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func writeFallbackFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}
	return path
}

func TestResolveCachesRemoteValue(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessClient()
	resource := "projects/plateroute-test/secrets/stripe_api_key/versions/latest"
	client.values[resource] = "sk_test_123"

	fetcher, err := NewFetcher(ctx, WithAccessClient(client), WithDefaultProject("plateroute-test"))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
		if got != "sk_test_123" {
			t.Fatalf("Resolve #%d = %q", i+1, got)
		}
	}
	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("remote reads = %d, want 1", calls)
	}
}

func TestResolveHonoursVersionAndProjectOverrides(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessClient()
	resource := "projects/other-proj/secrets/stripe_webhook_secret/versions/7"
	client.values[resource] = "whsec_v7"

	fetcher, err := NewFetcher(ctx, WithAccessClient(client), WithDefaultProject("plateroute-test"))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret?version=7&project=other-proj")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "whsec_v7" {
		t.Fatalf("value = %q", got)
	}
}

func TestResolveFallsBackWhenDenied(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessClient()
	client.errs["projects/plateroute-test/secrets/stripe_api_key/versions/latest"] =
		status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx,
		WithAccessClient(client),
		WithDefaultProject("plateroute-test"),
		WithFallbackFile(writeFallbackFile(t, "stripe_api_key=sk_local\n")),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "sk_local" {
		t.Fatalf("value = %q", got)
	}
}

func TestResolveDoesNotMaskMissingSecret(t *testing.T) {
	// NotFound means the secret genuinely does not exist; answering from the
	// fallback file would hide a misconfigured deployment.
	ctx := context.Background()
	client := newFakeAccessClient()

	fetcher, err := NewFetcher(ctx,
		WithAccessClient(client),
		WithDefaultProject("plateroute-test"),
		WithFallbackFile(writeFallbackFile(t, "stripe_api_key=sk_local\n")),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "secret://stripe_api_key"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestResolveWithoutClientServesFallbackFile(t *testing.T) {
	ctx := context.Background()

	original := newSecretManagerClient
	newSecretManagerClient = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { newSecretManagerClient = original })

	fetcher, err := NewFetcher(ctx,
		WithFallbackFile(writeFallbackFile(t, "# local credentials\nsecret://stripe_api_key=sk_local\n")),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_api_key")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "sk_local" {
		t.Fatalf("value = %q", got)
	}
}

func TestParseRefRejectsBadReferences(t *testing.T) {
	for _, raw := range []string{"", "stripe_api_key", "vault://stripe_api_key", "secret://"} {
		if _, err := parseRef(raw); err == nil {
			t.Errorf("parseRef(%q) accepted", raw)
		}
	}
}
