package recog

import (
	"strings"
	"time"

	"github.com/guri-assistant/guri/pkg/bus"
)

// GateConfig sets the phrases the hot-word gate reacts to. Empty slices
// pick the defaults.
type GateConfig struct {
	WakePhrases   []string
	CancelPhrases []string

	// OnCancel fires when a cancel phrase is heard, whether or not a
	// turn is in progress.
	OnCancel func()

	// OnAmbient receives speech that addressed nobody; it is recorded
	// to session history without starting a turn.
	OnAmbient func(text string, at time.Time)
}

var (
	defaultWake   = []string{"ぐり", "グリ", "ぐりちゃん"}
	defaultCancel = []string{"待て", "まて", "ストップ", "やめて"}
)

// Gate watches final recognition events for the wake phrase and turns
// them into prompts.
type Gate struct {
	cfg GateConfig
	bus *bus.Bus
}

func NewGate(cfg GateConfig, b *bus.Bus) *Gate {
	if len(cfg.WakePhrases) == 0 {
		cfg.WakePhrases = defaultWake
	}
	if len(cfg.CancelPhrases) == 0 {
		cfg.CancelPhrases = defaultCancel
	}
	return &Gate{cfg: cfg, bus: b}
}

// Run consumes final events until the bus closes.
func (g *Gate) Run() {
	for {
		select {
		case <-g.bus.Done():
			return
		case ev := <-g.bus.Finals():
			g.handle(ev)
		}
	}
}

func (g *Gate) handle(ev bus.RecognitionEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	for _, phrase := range g.cfg.CancelPhrases {
		if strings.Contains(text, phrase) {
			if g.cfg.OnCancel != nil {
				g.cfg.OnCancel()
			}
			g.bus.NotifyActivity()
			return
		}
	}

	for _, phrase := range g.cfg.WakePhrases {
		if idx := strings.Index(text, phrase); idx >= 0 {
			p := bus.NewPrompt(bus.SourceHotword, stripWake(text, idx, phrase), bus.PriorityHigh)
			g.bus.PublishPrompt(p)
			return
		}
	}

	if g.cfg.OnAmbient != nil {
		g.cfg.OnAmbient(text, ev.At)
	}
}

// stripWake removes the wake phrase and any punctuation right after it,
// so "ぐり、今何時？" becomes "今何時？". When nothing but the wake
// phrase was said, the original text is kept as the prompt.
func stripWake(text string, idx int, phrase string) string {
	rest := text[idx+len(phrase):]
	rest = strings.TrimLeft(rest, "、。,，. \t　")
	if rest == "" {
		return text
	}
	return rest
}
