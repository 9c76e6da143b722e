// Package bridge supervises the external synthesis engine as a child
// process. The child is joined to the parent's fate at the OS level
// where supported, so an ungraceful crash of the assistant never leaves
// an orphaned engine holding the audio device.
package bridge

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	stopGrace    = 2 * time.Second
	restartDelay = 3 * time.Second
)

// Config describes the child process.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Label prefixes forwarded log lines.
	Label string

	// Restart relaunches the child if it exits without Stop being
	// called.
	Restart bool

	Logger *slog.Logger
}

// Supervisor owns the child process handle. Start and Stop may be
// called from any goroutine; Stop is idempotent.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
	exited  chan struct{}
}

func New(cfg Config) *Supervisor {
	if cfg.Label == "" {
		cfg.Label = "bridge"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{cfg: cfg}
}

// Start launches the child and the log-forwarding and watchdog
// goroutines.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return fmt.Errorf("bridge: already running")
	}
	s.stopped = false
	return s.launch(ctx)
}

// launch starts one child. Caller holds the lock.
func (s *Supervisor) launch(ctx context.Context) error {
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if len(s.cfg.Env) > 0 {
		cmd.Env = s.cfg.Env
	}
	setDieWithParent(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("bridge: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("bridge: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("bridge: start %s: %w", s.cfg.Command, err)
	}
	s.cfg.Logger.Info("bridge: started", "label", s.cfg.Label, "pid", cmd.Process.Pid)

	exited := make(chan struct{})
	s.cmd = cmd
	s.exited = exited

	go s.forward(bufio.NewScanner(stdout), "stdout")
	go s.forward(bufio.NewScanner(stderr), "stderr")
	go s.watch(ctx, cmd, exited)
	return nil
}

// forward labels each child output line into the parent's log.
func (s *Supervisor) forward(sc *bufio.Scanner, stream string) {
	for sc.Scan() {
		s.cfg.Logger.Info("["+s.cfg.Label+"] "+sc.Text(), "stream", stream)
	}
}

// watch reaps the child and, unless it was stopped on purpose,
// relaunches it.
func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	close(exited)

	s.mu.Lock()
	intentional := s.stopped
	if s.cmd == cmd {
		s.cmd = nil
	}
	s.mu.Unlock()

	if intentional || ctx.Err() != nil {
		return
	}
	s.cfg.Logger.Warn("bridge: exited unexpectedly", "label", s.cfg.Label, "error", err)
	if !s.cfg.Restart {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(restartDelay):
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.cmd != nil {
		return
	}
	if err := s.launch(ctx); err != nil {
		s.cfg.Logger.Error("bridge: restart failed", "label", s.cfg.Label, "error", err)
	}
}

// Running reports whether a child is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Stop terminates the child: a polite signal first, a kill after the
// grace period. Idempotent; returns once the process is gone.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cmd := s.cmd
	exited := s.exited
	s.mu.Unlock()
	if cmd == nil {
		return
	}

	terminate(cmd)
	select {
	case <-exited:
		s.cfg.Logger.Info("bridge: stopped", "label", s.cfg.Label)
		return
	case <-time.After(stopGrace):
	}

	s.cfg.Logger.Warn("bridge: did not exit in time, killing", "label", s.cfg.Label)
	cmd.Process.Kill()
	<-exited
}
