package process

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	return NewManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartStop(t *testing.T) {
	m := newManager(t, Config{
		Binary:          "/bin/sh",
		Args:            []string{"-c", "sleep 30"},
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Status() != StatusRunning {
		t.Errorf("status = %s, want running", m.Status())
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("status = %s, want stopped", m.Status())
	}
}

func TestStartMissingBinary(t *testing.T) {
	m := newManager(t, Config{Binary: "/nonexistent/binary"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail for a missing binary")
	}
	if m.Status() != StatusFailed {
		t.Errorf("status = %s, want failed", m.Status())
	}
}

func TestRestartOnFailure(t *testing.T) {
	// The script exits immediately; after MaxRestarts the manager gives up.
	m := newManager(t, Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", "exit 1"},
		RestartDelay: 10 * time.Millisecond,
		MaxRestarts:  2,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not give up within the restart budget")
	}

	if got := m.Restarts(); got != 3 {
		t.Errorf("restarts = %d, want 3 (the counter includes the attempt that exhausted the budget)", got)
	}
	if m.Status() != StatusFailed {
		t.Errorf("status = %s, want failed", m.Status())
	}
}

func TestRestartRecovers(t *testing.T) {
	// The process exits once, then the restarted instance stays up thanks
	// to the marker file.
	marker := filepath.Join(t.TempDir(), "started-once")
	script := "if [ -e " + marker + " ]; then sleep 30; else touch " + marker + "; exit 1; fi"

	m := newManager(t, Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", script},
		RestartDelay: 10 * time.Millisecond,
		MaxRestarts:  5,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil && m.Status() == StatusRunning && m.Restarts() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("process did not recover: status = %s, restarts = %d", m.Status(), m.Restarts())
}
