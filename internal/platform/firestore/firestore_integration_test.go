//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	pconfig "github.com/luxeplan/api/internal/platform/config"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

type sampleEntity struct {
	ID    string `firestore:"-"`
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

func startEmulator(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        firestoreEmulatorImage,
			ExposedPorts: []string{"8080/tcp"},
			Cmd:          []string{"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080"},
			WaitingFor:   wait.ForLog("Dev App Server is now running").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("firestore emulator unavailable: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8080/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return host + ":" + port.Port()
}

func TestCollectionAgainstEmulator(t *testing.T) {
	endpoint := startEmulator(t)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "luxeplan-test", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	samples := pfirestore.NewCollection[sampleEntity](provider, "samples", func(s *sampleEntity, id string) { s.ID = id })
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if err := samples.Create(ctx, name, sampleEntity{Name: name, Count: i}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	err := samples.Create(ctx, "alpha", sampleEntity{Name: "alpha"})
	var repoErr *pfirestore.Error
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	got, err := samples.Get(ctx, "beta")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "beta" || got.Count != 1 {
		t.Fatalf("unexpected document %+v", got)
	}

	ref, err := samples.Ref(ctx)
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	query := ref.OrderBy("count", firestore.Asc)
	page, err := samples.Page(ctx, query, 2, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Name != "gamma" {
		t.Fatalf("unexpected page %+v", page)
	}
	total, err := samples.Count(ctx, ref.Query)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 documents, got %d", total)
	}

	err = provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := samples.TxGet(ctx, tx, "alpha")
		if err != nil {
			return err
		}
		docRef, err := samples.Doc(ctx, "alpha")
		if err != nil {
			return err
		}
		return tx.Update(docRef, []firestore.Update{{Path: "count", Value: doc.Count + 10}})
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if got, _ := samples.Get(ctx, "alpha"); got.Count != 10 {
		t.Fatalf("expected transactional update, got %+v", got)
	}
}
