// Package chat feeds inbound chat messages into the session. Every
// message is recorded; messages that address the bot become prompts,
// rate-limited per author.
package chat

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guri-assistant/guri/pkg/bus"
)

const defaultCooldown = 30 * time.Second

// Message is the normalized shape of one inbound chat message,
// whatever the platform called the fields.
type Message struct {
	Author  string
	Text    string
	ReplyTo string
	At      time.Time
}

// AdapterConfig wires an Adapter. BotName is the handle a mention must
// contain; MentionPhrases adds alternates.
type AdapterConfig struct {
	BotName        string
	MentionPhrases []string
	Cooldown       time.Duration

	// OnMessage sees every inbound message, mentioned or not; it
	// records the message to session history and the memory store.
	OnMessage func(Message)

	// Send posts a reply back to the chat channel.
	Send func(text string) error

	Logger *slog.Logger
}

// Adapter turns mentions into prompts with a per-author cooldown.
type Adapter struct {
	cfg AdapterConfig
	bus *bus.Bus

	mu        sync.Mutex
	lastFired map[string]time.Time

	now func() time.Time
}

func NewAdapter(cfg AdapterConfig, b *bus.Bus) *Adapter {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		cfg:       cfg,
		bus:       b,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Handle processes one inbound message.
func (a *Adapter) Handle(msg Message) {
	if msg.At.IsZero() {
		msg.At = a.now()
	}
	if a.cfg.OnMessage != nil {
		a.cfg.OnMessage(msg)
	}

	stripped, mentioned := a.stripMention(msg.Text)
	if !mentioned {
		return
	}
	if !a.allow(msg.Author) {
		a.cfg.Logger.Debug("chat: mention suppressed by cooldown", "author", msg.Author)
		return
	}

	p := bus.NewPrompt(bus.SourceChat, stripped, bus.PriorityNormal)
	p.Reply = func(response string) {
		if a.cfg.Send == nil {
			return
		}
		if err := a.cfg.Send(response); err != nil {
			a.cfg.Logger.Warn("chat: reply failed", "author", msg.Author, "error", err)
		}
	}
	a.bus.PublishPrompt(p)
}

// allow records a trigger for author and reports whether it beat the
// cooldown.
func (a *Adapter) allow(author string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.lastFired[author]; ok && now.Sub(last) < a.cfg.Cooldown {
		return false
	}
	a.lastFired[author] = now
	return true
}

func (a *Adapter) stripMention(text string) (string, bool) {
	phrases := make([]string, 0, len(a.cfg.MentionPhrases)+1)
	if a.cfg.BotName != "" {
		phrases = append(phrases, "@"+a.cfg.BotName)
	}
	phrases = append(phrases, a.cfg.MentionPhrases...)

	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if idx := strings.Index(text, phrase); idx >= 0 {
			stripped := strings.TrimSpace(text[:idx] + text[idx+len(phrase):])
			if stripped == "" {
				stripped = text
			}
			return stripped, true
		}
	}
	return text, false
}
