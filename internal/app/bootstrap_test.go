package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, seedFile string) string {
	t.Helper()
	cfg := "catalog:\n" +
		"  path: " + filepath.Join(dir, "items.db") + "\n" +
		"  seed_file: " + seedFile + "\n" +
		"logging:\n" +
		"  dir: " + filepath.Join(dir, "logs") + "\n" +
		"icons:\n" +
		"  enabled: false\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitialize_ClosesCatalogOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, filepath.Join(dir, "missing.json"))

	b := NewBootstrap()
	if err := b.Initialize(context.Background(), path); err == nil {
		t.Fatal("Expected an error for a missing seed file")
	}
	if b.Storage != nil {
		t.Error("Catalog should be closed and released after a failed bootstrap")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close after failure should be a no-op, got %v", err)
	}
}

func TestInitialize_WiresComponents(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "items.json")
	dump := `{"items":{"simpleitem":[{"@uniquename":"T4_ORE","@shopcategory":"resources","@shopsubcategory1":"ore"}]}}`
	if err := os.WriteFile(seed, []byte(dump), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBootstrap()
	if err := b.Initialize(context.Background(), writeConfig(t, dir, seed)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer b.Close()

	if b.Cache == nil || b.Crafter == nil || b.Gold == nil || b.Alerts == nil || b.Client == nil {
		t.Fatalf("Missing components: %+v", b)
	}
	if b.Downloader != nil {
		t.Error("Icons are disabled; no downloader expected")
	}
	if !b.Cache.IsCacheable("T4_ORE") {
		t.Error("Seeded resource should be cacheable")
	}
}
