package memstore

import (
	"testing"

	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.RunConformance(t, func(t *testing.T) storage.Storage {
		return New(storage.Flavor{Path: storage.WithPath, Storage: storage.Normalized})
	})
}
