// Package recog turns raw microphone audio into recognition events.
// The Transcriber owns a rolling sample buffer and a recognition model
// behind the narrow Recognizer interface; it publishes partial
// hypotheses as they evolve and a final once the speaker goes quiet.
package recog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guri-assistant/guri/pkg/audio"
	"github.com/guri-assistant/guri/pkg/bus"
)

// Recognizer is a speech-to-text model. Recognize returns the current
// best hypothesis for the given 16 kHz mono samples; Reset discards any
// internal decoding state between utterances.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32) (string, error)
	Reset() error
}

const (
	// A recognition pass runs on this cadence.
	passInterval = 200 * time.Millisecond

	// SilenceThreshold is how long a hypothesis must hold still before
	// it is committed as final.
	SilenceThreshold = 1200 * time.Millisecond

	// Frames quieter than this RMS are treated as silence and not
	// appended to the utterance buffer.
	vadRMSFloor = 0.01

	// Upper bound on buffered utterance audio.
	maxBufferSeconds = 30
)

// Transcriber drives the Recognizer from an audio frame stream and
// publishes RecognitionEvents on the bus.
type Transcriber struct {
	rec Recognizer
	bus *bus.Bus
	log *slog.Logger

	mu           sync.Mutex
	samples      []float32
	hypothesis   string
	lastChangeAt time.Time
	voiced       bool
}

func NewTranscriber(rec Recognizer, b *bus.Bus, log *slog.Logger) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	return &Transcriber{rec: rec, bus: b, log: log}
}

// Feed appends one captured frame. Frames below the VAD floor extend
// nothing; the buffer only grows while someone is speaking or just
// stopped.
func (t *Transcriber) Feed(frame audio.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	voiced := frame.RMS() >= vadRMSFloor
	if !voiced && len(t.samples) == 0 {
		return
	}
	t.voiced = t.voiced || voiced
	t.samples = append(t.samples, frame...)
	if max := maxBufferSeconds * audio.SampleRate; len(t.samples) > max {
		t.samples = t.samples[len(t.samples)-max:]
	}
}

// Partial returns the current in-flight hypothesis, empty when nobody
// is speaking. The idle commentator's busy predicate reads this.
func (t *Transcriber) Partial() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hypothesis
}

// Run performs recognition passes until ctx is done. A failed pass is
// logged and the loop sleeps a second with the buffer preserved; no
// error terminates the loop.
func (t *Transcriber) Run(ctx context.Context) {
	ticker := time.NewTicker(passInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := t.pass(ctx); err != nil {
			t.log.Error("recog: recognition pass", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (t *Transcriber) pass(ctx context.Context) error {
	t.mu.Lock()
	buf := t.samples
	t.mu.Unlock()
	if len(buf) == 0 {
		return nil
	}

	text, err := t.rec.Recognize(ctx, buf)
	if err != nil {
		return err
	}

	t.mu.Lock()
	now := time.Now()
	if text != t.hypothesis {
		t.hypothesis = text
		t.lastChangeAt = now
		if text != "" {
			t.mu.Unlock()
			t.bus.PublishPartial(bus.RecognitionEvent{Text: text, At: now})
			return nil
		}
		t.mu.Unlock()
		return nil
	}

	// A non-empty hypothesis that has held still through the silence
	// window is committed. A hypothesis that decayed to empty never
	// finalizes.
	if t.hypothesis != "" && now.Sub(t.lastChangeAt) > SilenceThreshold {
		final := t.hypothesis
		t.hypothesis = ""
		t.samples = nil
		t.voiced = false
		t.mu.Unlock()
		if err := t.rec.Reset(); err != nil {
			t.log.Warn("recog: recognizer reset", "error", err)
		}
		t.bus.PublishFinal(bus.RecognitionEvent{Text: final, Final: true, At: now})
		return nil
	}
	t.mu.Unlock()
	return nil
}
