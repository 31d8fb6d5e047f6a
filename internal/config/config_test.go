package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8086 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Memory.ChunkSize != 1000 || cfg.Memory.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", cfg.Memory.ChunkSize, cfg.Memory.ChunkOverlap)
	}
	if cfg.Memory.SearchLimit != 5 {
		t.Errorf("search limit = %d, want 5", cfg.Memory.SearchLimit)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("expected default extensions")
	}
}

func TestApplyDefaults_doesNotOverride(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Memory.ChunkSize = 500
	ApplyDefaults(cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Memory.ChunkSize != 500 {
		t.Errorf("chunk size = %d, want 500", cfg.Memory.ChunkSize)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
storage:
  documents_dir: ./data/documents
  index_path: /tmp/omoide/vectors.bin
embedding:
  dimensions: 128
memory:
  chunk_size: 800
  chunk_overlap: 100
watch:
  inboxes:
    - directory: ./inbox/alice
      user_id: alice
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 128 {
		t.Errorf("dimensions = %d, want 128", cfg.Embedding.Dimensions)
	}
	if cfg.Memory.ChunkSize != 800 || cfg.Memory.ChunkOverlap != 100 {
		t.Errorf("chunking = %d/%d", cfg.Memory.ChunkSize, cfg.Memory.ChunkOverlap)
	}

	// ./-relative paths resolve against the config directory.
	want := filepath.Join(dir, "data/documents")
	if cfg.Storage.DocumentsDir != want {
		t.Errorf("documents dir = %q, want %q", cfg.Storage.DocumentsDir, want)
	}
	// Absolute paths are kept as-is.
	if cfg.Storage.IndexPath != "/tmp/omoide/vectors.bin" {
		t.Errorf("index path = %q", cfg.Storage.IndexPath)
	}
	// Unset paths get defaults.
	if cfg.Storage.MetadataPath == "" {
		t.Error("metadata path should get a default")
	}
	if len(cfg.Watch.Inboxes) != 1 || cfg.Watch.Inboxes[0].UserID != "alice" {
		t.Errorf("inboxes = %+v", cfg.Watch.Inboxes)
	}
	if !filepath.IsAbs(cfg.Watch.Inboxes[0].Directory) {
		t.Errorf("inbox dir should be absolute: %q", cfg.Watch.Inboxes[0].Directory)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not valid yaml: ["), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for invalid YAML")
	}
}
