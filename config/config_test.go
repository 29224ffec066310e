package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Each test runs in an empty directory so no .env or config.yaml is picked up.
func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen != ":3002" {
		t.Errorf("Listen: got %q, want %q", cfg.Listen, ":3002")
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type: got %q, want %q", cfg.Storage.Type, "memory")
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("Client.Timeout: got %v, want %v", cfg.Client.Timeout, 10*time.Second)
	}
	if cfg.Client.NoticeTTL != 1500*time.Millisecond {
		t.Errorf("Client.NoticeTTL: got %v, want %v", cfg.Client.NoticeTTL, 1500*time.Millisecond)
	}
	if cfg.Client.Concurrency != "revision" {
		t.Errorf("Client.Concurrency: got %q, want %q", cfg.Client.Concurrency, "revision")
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("DATA_SOURCE_NAME", "/tmp/decks.db")
	t.Setenv("S3_BUCKET_NAME", "decks")
	t.Setenv("CLIENT_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.DataSourceName != "/tmp/decks.db" {
		t.Errorf("Storage: got %+v", cfg.Storage)
	}
	if cfg.S3.Bucket != "decks" {
		t.Errorf("S3.Bucket: got %q, want %q", cfg.S3.Bucket, "decks")
	}
	if cfg.Client.Timeout != 3*time.Second {
		t.Errorf("Client.Timeout: got %v, want %v", cfg.Client.Timeout, 3*time.Second)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers: got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "listen: \":8080\"\nstorage:\n  type: filesystem\n  path: /srv/decks\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Storage.Type != "filesystem" || cfg.Storage.Path != "/srv/decks" {
		t.Errorf("got %+v", cfg)
	}
}
