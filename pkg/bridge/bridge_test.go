//go:build linux

package bridge

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type logBuf struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuf) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuf) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSupervisorStartStop(t *testing.T) {
	buf := &logBuf{}
	s := New(Config{
		Command: "sh",
		Args:    []string{"-c", "echo ready; sleep 60"},
		Label:   "voicevox",
		Logger:  slog.New(slog.NewTextHandler(buf, nil)),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "[voicevox] ready") {
		if time.Now().After(deadline) {
			t.Fatalf("child output never forwarded; log:\n%s", buf.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	if s.Running() {
		t.Error("still running after Stop")
	}
	s.Stop() // idempotent
}

func TestSupervisorEscalatesToKill(t *testing.T) {
	s := New(Config{
		Command: "sh",
		Args:    []string{"-c", "trap '' TERM; sleep 60"},
		Logger:  slog.New(slog.NewTextHandler(&logBuf{}, nil)),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond) // let the trap install

	start := time.Now()
	s.Stop()
	elapsed := time.Since(start)
	if elapsed < stopGrace {
		t.Errorf("stopped in %v; expected the full grace period first", elapsed)
	}
	if s.Running() {
		t.Error("still running after kill")
	}
}

func TestSupervisorRestartsOnCrash(t *testing.T) {
	s := New(Config{
		Command: "sh",
		Args:    []string{"-c", "sleep 60"},
		Restart: true,
		Logger:  slog.New(slog.NewTextHandler(&logBuf{}, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	pid := s.cmd.Process.Pid
	s.cmd.Process.Kill()
	s.mu.Unlock()

	deadline := time.Now().Add(2*time.Second + restartDelay)
	for {
		s.mu.Lock()
		restarted := s.cmd != nil && s.cmd.Process.Pid != pid
		s.mu.Unlock()
		if restarted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never restarted")
		}
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop()
}

func TestSupervisorDoubleStart(t *testing.T) {
	s := New(Config{
		Command: "sleep",
		Args:    []string{"60"},
		Logger:  slog.New(slog.NewTextHandler(&logBuf{}, nil)),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
}
