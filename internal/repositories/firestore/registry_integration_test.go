//go:build integration

package firestore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/luxeplan/api/internal/domain"
	pconfig "github.com/luxeplan/api/internal/platform/config"
	pfirestore "github.com/luxeplan/api/internal/platform/firestore"
	"github.com/luxeplan/api/internal/repositories"
)

func newEmulatorRegistry(t *testing.T, projectID string) *Registry {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators",
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

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    projectID,
		EmulatorHost: host + ":" + port.Port(),
	})
	reg, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func TestRecordPaidIsIdempotentUnderConcurrency(t *testing.T) {
	reg := newEmulatorRegistry(t, "payments-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	if err := reg.Bookings().Insert(ctx, domain.Booking{
		ID:        "bk-1",
		UserEmail: "client@luxe.test",
		ServiceID: "svc-1",
		Date:      "2025-06-01",
		Cost:      250,
		Currency:  "usd",
		Status:    domain.BookingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("insert booking: %v", err)
	}

	const workers = 8
	created := make([]bool, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			_, ok, err := reg.Payments().RecordPaid(ctx, domain.Payment{
				TransactionID: "pi_123",
				BookingID:     "bk-1",
				Amount:        250,
				Currency:      "usd",
				CustomerEmail: "client@luxe.test",
				PaymentStatus: domain.PaymentPaid,
				PaidAt:        now,
			})
			if err != nil {
				t.Errorf("record paid(%d): %v", idx, err)
				return
			}
			created[idx] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range created {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one created payment, got %d", count)
	}

	booking, err := reg.Bookings().FindByID(ctx, "bk-1")
	if err != nil {
		t.Fatalf("find booking: %v", err)
	}
	if booking.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("expected booking marked paid, got %q", booking.PaymentStatus)
	}
}

func TestBookingApplyUpdatesDecoratorWorkStatus(t *testing.T) {
	reg := newEmulatorRegistry(t, "bookings-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 2; i++ {
		if err := reg.Decorators().Insert(ctx, domain.Decorator{
			ID:         fmt.Sprintf("dec-%d", i),
			Email:      fmt.Sprintf("deco%d@luxe.test", i),
			Name:       fmt.Sprintf("Decorator %d", i),
			Status:     domain.DecoratorAccepted,
			WorkStatus: domain.WorkAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			t.Fatalf("insert decorator %d: %v", i, err)
		}
	}
	if err := reg.Bookings().Insert(ctx, domain.Booking{
		ID:        "bk-2",
		UserEmail: "client@luxe.test",
		Date:      "2025-06-02",
		Status:    domain.BookingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("insert booking: %v", err)
	}

	updated, err := reg.Bookings().Apply(ctx, repositories.BookingChange{
		BookingID:    "bk-2",
		DecoratorIDs: []string{"dec-1", "dec-2"},
		Mutate: func(b *domain.Booking, decorators []domain.Decorator) ([]repositories.WorkStatusUpdate, error) {
			b.Status = domain.BookingAssigned
			updates := make([]repositories.WorkStatusUpdate, 0, len(decorators))
			for _, d := range decorators {
				b.DecoratorIDs = append(b.DecoratorIDs, d.ID)
				b.DecoratorEmails = append(b.DecoratorEmails, d.Email)
				updates = append(updates, repositories.WorkStatusUpdate{DecoratorID: d.ID, WorkStatus: domain.WorkWorking})
			}
			return updates, nil
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.Status != domain.BookingAssigned || len(updated.DecoratorIDs) != 2 {
		t.Fatalf("unexpected booking %+v", updated)
	}

	for _, id := range []string{"dec-1", "dec-2"} {
		d, err := reg.Decorators().FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find decorator %s: %v", id, err)
		}
		if d.WorkStatus != domain.WorkWorking {
			t.Fatalf("expected %s working, got %q", id, d.WorkStatus)
		}
	}
}
