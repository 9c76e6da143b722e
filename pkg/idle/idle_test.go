package idle

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guri-assistant/guri/pkg/bus"
)

func TestFirePublishesAutoPrompt(t *testing.T) {
	b := bus.New()
	defer b.Close()
	history := strings.Repeat("あ", 1500)
	c := New(Config{
		Busy:    func() bool { return false },
		History: func() string { return history },
	}, b)

	c.tryFire(context.Background(), nil)

	select {
	case p := <-b.Prompts():
		if p.Source != bus.SourceAuto || p.Priority != bus.PriorityNormal {
			t.Errorf("prompt = source %q priority %d", p.Source, p.Priority)
		}
		if !strings.HasPrefix(p.Text, promptTemplate) {
			t.Error("prompt missing instruction template")
		}
		tail := strings.TrimPrefix(p.Text, promptTemplate)
		if got := len([]rune(tail)); got != historyTailRunes {
			t.Errorf("history tail runes = %d; want %d", got, historyTailRunes)
		}
	case <-time.After(time.Second):
		t.Fatal("no prompt published")
	}
}

func TestBusySuppressesFiring(t *testing.T) {
	b := bus.New()
	defer b.Close()
	var checks atomic.Int32
	c := New(Config{
		RetryDelay: 5 * time.Millisecond,
		Busy:       func() bool { checks.Add(1); return true },
		History:    func() string { return "" },
	}, b)

	c.tryFire(context.Background(), nil)

	// One check at expiry plus one per retry.
	if got := checks.Load(); got != retryMax+1 {
		t.Errorf("busy checks = %d; want %d", got, retryMax+1)
	}
	select {
	case p := <-b.Prompts():
		t.Errorf("prompt published while busy: %+v", p)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBusyClearsDuringRetry(t *testing.T) {
	b := bus.New()
	defer b.Close()
	var checks atomic.Int32
	c := New(Config{
		RetryDelay: time.Millisecond,
		Busy:       func() bool { return checks.Add(1) < 3 },
		History:    func() string { return "short" },
	}, b)

	c.tryFire(context.Background(), nil)

	select {
	case <-b.Prompts():
	case <-time.After(time.Second):
		t.Fatal("no prompt after busy cleared")
	}
}

func TestActivityAbandonsFiring(t *testing.T) {
	b := bus.New()
	defer b.Close()
	c := New(Config{
		RetryDelay: time.Hour,
		Busy:       func() bool { return true },
		History:    func() string { return "" },
	}, b)

	activity := make(chan struct{}, 1)
	activity <- struct{}{}
	done := make(chan struct{})
	go func() {
		c.tryFire(context.Background(), activity)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("firing did not abandon on activity")
	}
}

func TestRunResetsOnActivity(t *testing.T) {
	b := bus.New()
	defer b.Close()
	c := New(Config{
		MinInterval: 30 * time.Millisecond,
		MaxInterval: 40 * time.Millisecond,
		Busy:        func() bool { return false },
		History:     func() string { return "" },
	}, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// Keep poking the bus faster than the minimum interval; the timer
	// must never expire.
	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case <-deadline:
			return
		case p := <-b.Prompts():
			t.Fatalf("prompt fired despite constant activity: %+v", p)
		case <-time.After(10 * time.Millisecond):
			b.NotifyActivity()
		}
	}
}

func TestTailRunes(t *testing.T) {
	if got := tailRunes("abc", 5); got != "abc" {
		t.Errorf("tailRunes short = %q", got)
	}
	if got := tailRunes("あいうえお", 2); got != "えお" {
		t.Errorf("tailRunes = %q; want えお", got)
	}
}
