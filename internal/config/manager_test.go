package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

func newTestManager(t *testing.T, content string) (*Manager, string) {
	t.Helper()
	path := writeConfigFile(t, content)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr, path
}

func TestManagerStatus(t *testing.T) {
	mgr, path := newTestManager(t, "server:\n  port: 8080\n")

	status := mgr.Status()
	if status.Path != path {
		t.Fatalf("Status().Path = %q, want %q", status.Path, path)
	}
	if status.Checksum == "" {
		t.Fatal("Status().Checksum is empty")
	}
	if status.LoadedAt.IsZero() {
		t.Fatal("Status().LoadedAt is zero")
	}
	if status.ReloadCount == 0 {
		t.Fatal("Status().ReloadCount should be > 0")
	}
}

func TestManagerReloadUpdatesChecksum(t *testing.T) {
	mgr, path := newTestManager(t, "server:\n  port: 8080\n")

	before := mgr.Status()

	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := mgr.Status()
	if after.Checksum == before.Checksum {
		t.Fatal("expected checksum to change after reload")
	}
	if after.ReloadCount != before.ReloadCount+1 {
		t.Fatalf("expected reload count %d, got %d", before.ReloadCount+1, after.ReloadCount)
	}
	if mgr.Get().Server.Port != 9090 {
		t.Fatalf("expected server port 9090, got %d", mgr.Get().Server.Port)
	}
}

func TestManagerReloadKeepsCurrentOnError(t *testing.T) {
	mgr, path := newTestManager(t, "server:\n  port: 8080\n")

	if err := os.WriteFile(path, []byte("server: [broken"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatal("expected reload error for broken config")
	}
	if mgr.Get().Server.Port != 8080 {
		t.Fatalf("expected config unchanged, got port %d", mgr.Get().Server.Port)
	}
}

func TestManagerOnChange(t *testing.T) {
	mgr, _ := newTestManager(t, "server:\n  port: 8080\n")

	var got *Config
	mgr.OnChange(func(c *Config) { got = c })

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected OnChange callback to fire")
	}
}
