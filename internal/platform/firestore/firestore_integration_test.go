//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/plateroute/api/internal/platform/config"
	pfirestore "github.com/plateroute/api/internal/platform/firestore"
)

type menuCount struct {
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

func TestCollectionAgainstEmulator(t *testing.T) {
	endpoint := startEmulator(t)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "test-project",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	coll := pfirestore.NewCollection[menuCount](provider, "menu_counts")

	if err := coll.Set(ctx, "margherita", menuCount{Name: "margherita", Count: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := coll.Get(ctx, "margherita")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "margherita" || doc.Data.Count != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.UpdateTime.IsZero() {
		t.Fatal("update time not populated")
	}

	if err := coll.Update(ctx, "margherita", []firestore.Update{{Path: "count", Value: 2}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err = coll.Get(ctx, "margherita")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if doc.Data.Count != 2 {
		t.Fatalf("count = %d, want 2", doc.Data.Count)
	}

	docs, err := coll.Query(ctx, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("query returned %d docs", len(docs))
	}

	t.Run("missing document classifies as not found", func(t *testing.T) {
		_, err := coll.Get(ctx, "no-such-dish")
		if err == nil {
			t.Fatal("expected error")
		}
		var classified interface{ IsNotFound() bool }
		if !errors.As(err, &classified) || !classified.IsNotFound() {
			t.Fatalf("error not classified as not found: %v", err)
		}
	})

	t.Run("transaction increments through Doc ref", func(t *testing.T) {
		err := provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			ref, err := coll.Doc(ctx, "margherita")
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			var entry menuCount
			if err := snap.DataTo(&entry); err != nil {
				return err
			}
			entry.Count++
			return tx.Set(ref, entry)
		})
		if err != nil {
			t.Fatalf("transaction: %v", err)
		}

		doc, err := coll.Get(ctx, "margherita")
		if err != nil {
			t.Fatalf("get after transaction: %v", err)
		}
		if doc.Data.Count != 3 {
			t.Fatalf("count = %d, want 3", doc.Data.Count)
		}
	})

	t.Run("cancelled context passes through", func(t *testing.T) {
		cancelled, cancelNow := context.WithCancel(context.Background())
		cancelNow()
		err := provider.RunTransaction(cancelled, func(context.Context, *firestore.Transaction) error {
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

// startEmulator runs the Firestore emulator in docker and blocks until it
// accepts connections. The test skips when docker is unavailable.
func startEmulator(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	infoCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(infoCtx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		"gcr.io/google.com/cloudsdktool/cloud-sdk:emulators",
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("start emulator: %v - %s", err, out)
	}
	containerID := strings.TrimSpace(string(out))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.CommandContext(stopCtx, "docker", "stop", containerID).Run()
	})

	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return endpoint
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("emulator at %s never became ready", endpoint)
	return ""
}
