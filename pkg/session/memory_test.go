package session

import (
	"strings"
	"testing"
)

func TestMemoryAppendMonotonic(t *testing.T) {
	m := NewMemory()
	var last int64
	for i := 0; i < 100; i++ {
		ev := m.Append(EventUserSpeech, "user", "x")
		if ev.At <= last {
			t.Fatalf("event %d at %d not after %d", i, ev.At, last)
		}
		last = ev.At
	}
}

func TestMemoryHistoryAndTail(t *testing.T) {
	m := NewMemory()
	m.Append(EventUserSpeech, "user", "今何時？")
	m.Append(EventAIResponse, "ぐり", "12時です。")

	h := m.History()
	if h != "user: 今何時？\nぐり: 12時です。\n" {
		t.Errorf("History = %q", h)
	}
	if got := m.Tail(5); got != "時です。\n" {
		t.Errorf("Tail(5) = %q", got)
	}
	if m.Tail(10000) != h {
		t.Error("Tail larger than history should return it whole")
	}
}

func TestMemorySeal(t *testing.T) {
	m := NewMemory()
	m.Append(EventUserSpeech, "user", "a")
	m.Seal()
	m.Seal() // idempotent
	if !m.Sealed() {
		t.Fatal("not sealed")
	}
	if ev := m.Append(EventUserSpeech, "user", "b"); ev.ID != "" {
		t.Error("append after seal succeeded")
	}
	if len(m.Events()) != 1 {
		t.Errorf("events = %d; want 1", len(m.Events()))
	}
}

func TestMemoryEventsSnapshot(t *testing.T) {
	m := NewMemory()
	m.Append(EventUserSpeech, "user", "a")
	snap := m.Events()
	m.Append(EventUserSpeech, "user", "b")
	if len(snap) != 1 {
		t.Errorf("snapshot grew to %d", len(snap))
	}
	if !strings.Contains(m.History(), "b") {
		t.Error("second append missing")
	}
}
