package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a supervised process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// Config holds configuration for a supervised subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format),
	// appended to the parent's environment.
	Env []string

	// RestartDelay is the time to wait before restarting after a failure.
	RestartDelay time.Duration

	// MaxRestarts limits restart attempts. 0 means unlimited.
	MaxRestarts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Manager supervises one subprocess: it starts it, relays its output to the
// logger and restarts it with a delay when it exits unexpectedly. Used by
// homeautod to run the dispatch process alongside itself.
type Manager struct {
	cfg Config
	log *slog.Logger

	mu            sync.Mutex
	cmd           *exec.Cmd
	status        Status
	restarts      int
	stopRequested bool
	done          chan struct{}
}

// NewManager creates a Manager. The process is not started until Start.
func NewManager(cfg Config, log *slog.Logger) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		log:    log,
		status: StatusStopped,
	}
}

// Start launches the subprocess and begins monitoring it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.cfg.Name)
	}
	m.stopRequested = false
	m.restarts = 0
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.startProcess(); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx)
	return nil
}

func (m *Manager) startProcess() error {
	//nolint:gosec // the binary path comes from the operator's config
	cmd := exec.Command(m.cfg.Binary, m.cfg.Args...)

	// Own process group so Stop can signal children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.cfg.Env != nil {
		cmd.Env = append(os.Environ(), m.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.cfg.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.mu.Unlock()

	go m.relayOutput("stdout", stdout)
	go m.relayOutput("stderr", stderr)

	m.log.Info("process started", "name", m.cfg.Name, "pid", cmd.Process.Pid)
	return nil
}

// relayOutput forwards each line of subprocess output to the logger.
func (m *Manager) relayOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.log.Debug("process output",
			"name", m.cfg.Name,
			"stream", stream,
			"line", scanner.Text())
	}
}

// monitor waits for the process to exit and restarts it unless the exit was
// requested or the restart budget is spent.
func (m *Manager) monitor(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.Lock()
		cmd := m.cmd
		m.mu.Unlock()

		err := cmd.Wait()

		m.mu.Lock()
		stopRequested := m.stopRequested
		m.mu.Unlock()

		if stopRequested {
			m.setStatus(StatusStopped)
			m.log.Info("process stopped", "name", m.cfg.Name)
			return
		}

		m.log.Warn("process exited unexpectedly", "name", m.cfg.Name, "error", err)
		m.setStatus(StatusFailed)

		m.mu.Lock()
		m.restarts++
		attempt := m.restarts
		m.mu.Unlock()

		if m.cfg.MaxRestarts > 0 && attempt > m.cfg.MaxRestarts {
			m.log.Error("restart budget exhausted", "name", m.cfg.Name, "attempts", attempt-1)
			return
		}

		m.log.Info("restarting process",
			"name", m.cfg.Name,
			"attempt", attempt,
			"delay", m.cfg.RestartDelay)

		select {
		case <-ctx.Done():
			m.setStatus(StatusStopped)
			return
		case <-time.After(m.cfg.RestartDelay):
		}

		m.mu.Lock()
		stopRequested = m.stopRequested
		m.mu.Unlock()
		if stopRequested {
			m.setStatus(StatusStopped)
			return
		}

		if err := m.startProcess(); err != nil {
			m.log.Error("restart failed", "name", m.cfg.Name, "error", err)
			m.setStatus(StatusFailed)
			return
		}
	}
}

// Stop terminates the process group gracefully, escalating to SIGKILL after
// the graceful timeout. Safe to call when the process already exited.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	if m.status != StatusRunning || m.cmd == nil || m.cmd.Process == nil {
		m.mu.Unlock()
		return nil
	}
	pid := m.cmd.Process.Pid
	done := m.done
	m.mu.Unlock()

	// Negative pid signals the whole process group.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		m.log.Warn("sending SIGTERM failed", "name", m.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.cfg.GracefulTimeout):
		m.log.Warn("graceful shutdown timed out, killing", "name", m.cfg.Name)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			return fmt.Errorf("killing %s: %w", m.cfg.Name, err)
		}
		<-done
		return nil
	}
}

// Status returns the current process state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Restarts returns how many times the process has been restarted.
func (m *Manager) Restarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}
