// Package idle fires spontaneous commentary when nothing has happened
// for a while. A random timer arms on start and re-arms on every
// activity signal; on expiry, if the assistant is mid-turn the firing
// retries a few times before giving up and re-arming.
package idle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/guri-assistant/guri/pkg/bus"
)

const (
	DefaultMinInterval = 300 * time.Second
	DefaultMaxInterval = 600 * time.Second

	retryDelay = 30 * time.Second
	retryMax   = 3

	// How much trailing session history rides along in the self-prompt.
	historyTailRunes = 1000
)

const promptTemplate = "画面の状況とこれまでの会話を踏まえて、独り言のように短くコメントしてください。質問はしないでください。\n\n最近の会話:\n"

// Config wires a Commentator. Busy and History are required; the rest
// default sensibly.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	RetryDelay  time.Duration

	// Busy reports whether the assistant is speaking or about to.
	Busy func() bool

	// History returns the formatted session history; only the trailing
	// portion is included in the prompt.
	History func() string

	Logger *slog.Logger
}

type Commentator struct {
	cfg Config
	bus *bus.Bus
}

func New(cfg Config, b *bus.Bus) *Commentator {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.MaxInterval <= cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval + DefaultMaxInterval - DefaultMinInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = retryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Commentator{cfg: cfg, bus: b}
}

func (c *Commentator) interval() time.Duration {
	return c.cfg.MinInterval + rand.N(c.cfg.MaxInterval-c.cfg.MinInterval)
}

// Run arms the timer and loops until ctx is done.
func (c *Commentator) Run(ctx context.Context) {
	activity := c.bus.SubscribeActivity()
	timer := time.NewTimer(c.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.interval())
		case <-timer.C:
			c.tryFire(ctx, activity)
			timer.Reset(c.interval())
		}
	}
}

// tryFire emits the self-prompt unless the assistant stays busy through
// every retry. Activity during a retry wait also abandons the firing.
func (c *Commentator) tryFire(ctx context.Context, activity <-chan struct{}) {
	for attempt := 0; ; attempt++ {
		if !c.cfg.Busy() {
			c.fire()
			return
		}
		if attempt == retryMax {
			c.cfg.Logger.Debug("idle: still busy after retries, re-arming")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-activity:
			return
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Commentator) fire() {
	text := promptTemplate + tailRunes(c.cfg.History(), historyTailRunes)
	p := bus.NewPrompt(bus.SourceAuto, text, bus.PriorityNormal)
	c.cfg.Logger.Info("idle: firing auto commentary", "id", p.ID)
	c.bus.PublishPrompt(p)
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
