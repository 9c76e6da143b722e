package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a session event.
type EventKind string

const (
	EventUserSpeech     EventKind = "user_speech"
	EventAmbientSpeech  EventKind = "ambient_speech"
	EventChatMessage    EventKind = "chat_message"
	EventAIResponse     EventKind = "ai_response"
	EventAutoCommentary EventKind = "auto_commentary"
)

// Event is one entry of the session log.
type Event struct {
	ID      string
	Kind    EventKind
	Author  string
	Content string
	At      int64
}

// Memory is the in-RAM log of the current session. Appends are ordered
// by a strictly monotonic nanosecond timestamp; once sealed the log
// never changes.
type Memory struct {
	id        string
	startedAt int64

	mu      sync.Mutex
	events  []Event
	lastAt  int64
	endedAt int64
}

func NewMemory() *Memory {
	return &Memory{
		id:        uuid.NewString(),
		startedAt: time.Now().UnixNano(),
	}
}

func (m *Memory) ID() string { return m.id }

// Append records one event and returns it. Appends after Seal are
// ignored.
func (m *Memory) Append(kind EventKind, author, content string) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endedAt != 0 {
		return Event{}
	}
	at := time.Now().UnixNano()
	if at <= m.lastAt {
		at = m.lastAt + 1
	}
	m.lastAt = at
	ev := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Author:  author,
		Content: content,
		At:      at,
	}
	m.events = append(m.events, ev)
	return ev
}

// Events returns a snapshot copy of the log.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// History renders the log as "author: content" lines, oldest first,
// the form the LLM receives as context.
func (m *Memory) History() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, ev := range m.events {
		fmt.Fprintf(&b, "%s: %s\n", ev.Author, ev.Content)
	}
	return b.String()
}

// Tail returns the trailing n runes of the rendered history.
func (m *Memory) Tail(n int) string {
	h := m.History()
	runes := []rune(h)
	if len(runes) <= n {
		return h
	}
	return string(runes[len(runes)-n:])
}

// Seal marks the session ended. Idempotent.
func (m *Memory) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endedAt == 0 {
		m.endedAt = time.Now().UnixNano()
	}
}

// Sealed reports whether the session has ended.
func (m *Memory) Sealed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endedAt != 0
}
