package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/luxeplan/secrets/stripe-api-key/versions/latest"
	client.values[resource] = "sk_live_remote"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("luxeplan"))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://stripe-api-key")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != "sk_live_remote" {
			t.Fatalf("expected remote secret, got %s", got)
		}
	}
	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("expected one remote fetch, got %d", calls)
	}
}

func TestResolveHonoursVersionQuery(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/luxeplan/secrets/stripe-webhook/versions/3"] = "whsec_v3"

	fetcher, _ := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("luxeplan"))
	got, err := fetcher.ResolveSecret(ctx, "secret://stripe-webhook?version=3")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if got != "whsec_v3" {
		t.Fatalf("expected pinned version, got %s", got)
	}
}

func TestResolveFallsBackWhenSecretManagerDenies(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("sm://stripe-api-key=sk_test_local\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	client := newFakeSecretClient()
	client.errors["projects/luxeplan/secrets/stripe-api-key/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	fetcher, _ := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("luxeplan"), WithFallbackFile(path))
	got, err := fetcher.Resolve(ctx, "secret://stripe-api-key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "sk_test_local" {
		t.Fatalf("expected fallback value, got %s", got)
	}
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("secret://stripe-api-key=sk_test_local\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	client := newFakeSecretClient()
	fetcher, _ := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("luxeplan"), WithFallbackFile(path))
	if _, err := fetcher.Resolve(ctx, "secret://stripe-api-key"); err == nil {
		t.Fatal("expected not found to surface")
	}
}

func TestResolveWithoutProjectUsesFallbackOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("secret://stripe-api-key=sk_test_local\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	fetcher, _ := NewFetcher(ctx, WithFallbackFile(path))
	got, err := fetcher.Resolve(ctx, "secret://stripe-api-key")
	if err != nil || got != "sk_test_local" {
		t.Fatalf("expected fallback value, got %q err=%v", got, err)
	}
	if _, err := fetcher.Resolve(ctx, "https://not-a-secret"); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++
	if err := f.errors[name]; err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
