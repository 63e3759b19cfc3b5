//go:build integration

package sqlstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	doltcontainer "github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/storagetest"
)

// newTestStore spins up a real Dolt server in a container and returns a
// Store pointed at it, matching the teacher's pattern of skipping
// container-backed tests when the environment can't run them (see
// internal/storage/dolt/server_integration_test.go's exec.LookPath guard).
func newTestStore(t *testing.T, flavor storage.Flavor) storage.Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed sqlstore test in -short mode")
	}
	ctx := context.Background()

	container, err := doltcontainer.Run(ctx, "dolthub/dolt-sql-server:latest")
	if err != nil {
		t.Skipf("dolt container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate dolt container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("root@tcp(%s:%s)/provenance?parseTime=true", host, port.Port())
	store, err := Open(ctx, "mysql", dsn, flavor)
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	return store
}

func TestConformanceNormalizedWithPath(t *testing.T) {
	flavor := storage.Flavor{Path: storage.WithPath, Storage: storage.Normalized}
	storagetest.RunConformance(t, func(t *testing.T) storage.Storage { return newTestStore(t, flavor) })
}

func TestConformanceDenormalizedWithPath(t *testing.T) {
	flavor := storage.Flavor{Path: storage.WithPath, Storage: storage.Denormalized}
	storagetest.RunConformance(t, func(t *testing.T) storage.Storage { return newTestStore(t, flavor) })
}
