// Package bus defines the messages exchanged between pipeline stages and
// a typed in-process router for them.
//
// Producers (transcriber, hot-word gate, idle commentator, chat adapter)
// publish; the orchestrator is the sole consumer of prompts and final
// recognition events. Partial recognition events fan out to any number
// of subscribers (UI, idle commentator). Partials may be dropped under
// backpressure; finals and prompts never are.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// RecognitionEvent is a speech recognition hypothesis. A contiguous
// utterance produces zero or more non-final events with evolving text,
// terminated by exactly one final event.
type RecognitionEvent struct {
	Text  string
	Final bool
	At    time.Time
}

// Source identifies what produced a Prompt.
type Source string

const (
	SourceHotword Source = "user_hotword"
	SourceChat    Source = "chat"
	SourceAuto    Source = "auto"
	SourceCommand Source = "user_command"
)

// Prompt priorities. Lower values dequeue first.
const (
	PriorityHigh   = 1
	PriorityNormal = 10
)

// Prompt is the unit of work accepted by the orchestrator. Immutable
// after creation.
type Prompt struct {
	ID       string
	Source   Source
	Text     string
	Priority int
	At       time.Time

	// Image is an opaque screenshot handle attached when vision is
	// enabled. Nil when absent.
	Image []byte

	// Reply posts the finished response back to the prompt's origin
	// (e.g. a chat channel). Nil when no reply surface exists.
	Reply func(text string)
}

// NewPrompt creates a Prompt with a fresh ID and the current time.
func NewPrompt(source Source, text string, priority int) *Prompt {
	return &Prompt{
		ID:       uuid.NewString(),
		Source:   source,
		Text:     text,
		Priority: priority,
		At:       time.Now(),
	}
}
