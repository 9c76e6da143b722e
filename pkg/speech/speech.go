package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoVoice is returned when a synthesizer has no voice matching the
// requested ID.
var ErrNoVoice = errors.New("speech: no such voice")

// Voice describes one selectable speaker of a synthesis engine.
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Style  string `json:"style,omitempty"`
	Engine string `json:"engine,omitempty"`
}

// Synthesizer turns text into playable PCM audio.
//
// Synthesize returns 16 kHz mono float32 samples encoded as WAV bytes;
// callers decode with audio.DecodeWAV. Preload warms the given voice so
// the first Synthesize call does not pay model-load latency; engines
// without a warmup step return nil.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	Preload(ctx context.Context, voiceID string) error
}

// Mux routes synthesis requests to named engines. The zero value is not
// usable; construct with NewMux.
type Mux struct {
	mu      sync.RWMutex
	engines map[string]Synthesizer
}

func NewMux() *Mux {
	return &Mux{engines: make(map[string]Synthesizer)}
}

// Register adds an engine under name, replacing any previous engine with
// the same name.
func (m *Mux) Register(name string, s Synthesizer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[name] = s
}

// Engine returns the engine registered under name.
func (m *Mux) Engine(name string) (Synthesizer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.engines[name]
	if !ok {
		return nil, fmt.Errorf("speech: unknown engine %q", name)
	}
	return s, nil
}

// Names returns the registered engine names in unspecified order.
func (m *Mux) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	return names
}

// Voices collects the voices of every registered engine, tagging each
// with its engine name. Engines that fail to answer are skipped.
func (m *Mux) Voices(ctx context.Context) []Voice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []Voice
	for name, s := range m.engines {
		voices, err := s.ListVoices(ctx)
		if err != nil {
			continue
		}
		for _, v := range voices {
			v.Engine = name
			all = append(all, v)
		}
	}
	return all
}
