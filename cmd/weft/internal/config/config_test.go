package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "weft.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.Workers != 4 || cfg.Scheduler.Algorithm != "work-stealing" {
		t.Errorf("unexpected defaults: %+v", cfg.Scheduler)
	}
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.yaml")
	data := []byte("server:\n  addr: \"localhost:9999\"\n  pingInterval: 5s\nscheduler:\n  workers: 2\n  algorithm: shared\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "localhost:9999" {
		t.Errorf("addr not applied: %s", cfg.Server.Addr)
	}
	if cfg.Server.PingInterval.Std() != 5*time.Second {
		t.Errorf("pingInterval not applied: %v", cfg.Server.PingInterval)
	}
	if cfg.Scheduler.Workers != 2 || cfg.Scheduler.Algorithm != "shared" {
		t.Errorf("scheduler section not applied: %+v", cfg.Scheduler)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.yaml")
	if err := os.WriteFile(path, []byte("scheduler:\n  workers: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for workers: 0")
	}

	if err := os.WriteFile(path, []byte("scheduler:\n  workers: 1\n  algorithm: magic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown algorithm")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.yaml")
	if err := os.WriteFile(path, []byte("scheduler:\n  workers: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	updates := make(chan *Config, 1)
	stop, err := Watch(path, func(cfg *Config) {
		select {
		case updates <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("scheduler:\n  workers: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-updates:
		if cfg.Scheduler.Workers != 8 {
			t.Errorf("expected workers 8 after reload, got %d", cfg.Scheduler.Workers)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}
