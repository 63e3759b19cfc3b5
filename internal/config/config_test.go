package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/swh-go/provenance/internal/storage"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Driver != "memory" {
		t.Errorf("default backend.driver = %q, want memory", cfg.Backend.Driver)
	}
	if cfg.Cache.MaxElements != 100_000 {
		t.Errorf("default cache.max_elements = %d, want 100000", cfg.Cache.MaxElements)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provenance.toml")
	contents := `
[backend]
driver = "mysql"
dsn = "root@tcp(127.0.0.1:3306)/provenance"
path = "without"
storage = "denormalized"

[ingest]
lower = false
min_depth = 2
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Driver != "mysql" || cfg.Backend.DSN == "" {
		t.Errorf("backend not loaded from file: %+v", cfg.Backend)
	}
	if cfg.Ingest.Lower || cfg.Ingest.MinDepth != 2 {
		t.Errorf("ingest not loaded from file: %+v", cfg.Ingest)
	}

	flavor, err := cfg.Backend.Flavor()
	if err != nil {
		t.Fatalf("Flavor: %v", err)
	}
	if flavor.Path != storage.WithoutPath || flavor.Storage != storage.Denormalized {
		t.Errorf("Flavor() = %+v, want without/denormalized", flavor)
	}
}

func TestBackendFlavorRejectsUnknownValues(t *testing.T) {
	b := BackendConfig{Path: "sideways"}
	if _, err := b.Flavor(); err == nil {
		t.Error("expected error for unknown backend.path")
	}
}
