package ttsq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guri-assistant/guri/pkg/audio"
	"github.com/guri-assistant/guri/pkg/buffer"
	"github.com/guri-assistant/guri/pkg/speech"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend down")
	}
	return audio.EncodeWAV(make([]float32, 3*playChunk), audio.SampleRate), nil
}

func (f *fakeSynth) ListVoices(context.Context) ([]speech.Voice, error) { return nil, nil }
func (f *fakeSynth) Preload(context.Context, string) error             { return nil }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeOutput struct {
	mu      sync.Mutex
	samples int
}

func (o *fakeOutput) Write(s []float32) error {
	o.mu.Lock()
	o.samples += len(s)
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) Playing() bool { return false }
func (o *fakeOutput) Close() error  { return nil }

func (o *fakeOutput) written() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.samples
}

func waitTurn(t *testing.T, done <-chan uint64, want uint64) {
	t.Helper()
	select {
	case gen := <-done:
		if gen != want {
			t.Fatalf("turn done gen = %d; want %d", gen, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("turn never completed")
	}
}

func TestPipelineFlow(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{}
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    synth,
		Output:     out,
		OnTurnDone: func(gen uint64) { done <- gen },
	})
	p.Start(context.Background())

	p.Submit(Unit{Gen: 1, Text: "はい。"})
	p.Submit(Unit{Gen: 1, Text: "現在は12時です。"})
	p.EndTurn(1)
	waitTurn(t, done, 1)
	p.Close()

	if got := synth.callCount(); got != 2 {
		t.Errorf("synth calls = %d; want 2", got)
	}
	if out.written() != 2*3*playChunk {
		t.Errorf("samples written = %d; want %d", out.written(), 2*3*playChunk)
	}
}

func TestPipelineFallback(t *testing.T) {
	primary := &fakeSynth{fail: true}
	secondary := &fakeSynth{}
	out := &fakeOutput{}
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    primary,
		Secondary:  secondary,
		Output:     out,
		OnTurnDone: func(gen uint64) { done <- gen },
	})
	p.Start(context.Background())
	p.Submit(Unit{Gen: 7, Text: "fallback please."})
	p.EndTurn(7)
	waitTurn(t, done, 7)
	p.Close()

	if primary.callCount() != 1 || secondary.callCount() != 1 {
		t.Errorf("calls primary=%d secondary=%d; want 1 each",
			primary.callCount(), secondary.callCount())
	}
	if out.written() == 0 {
		t.Error("no audio played after fallback")
	}
}

func TestPipelineBothBackendsFail(t *testing.T) {
	out := &fakeOutput{}
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    &fakeSynth{fail: true},
		Secondary:  &fakeSynth{fail: true},
		Output:     out,
		OnTurnDone: func(gen uint64) { done <- gen },
	})
	p.Start(context.Background())
	p.Submit(Unit{Gen: 2, Text: "doomed."})
	p.EndTurn(2)
	waitTurn(t, done, 2)
	p.Close()

	if out.written() != 0 {
		t.Errorf("samples written = %d; want 0", out.written())
	}
}

func TestPipelineStopDropsUnits(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{}
	stop := new(atomic.Bool)
	stop.Store(true)
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    synth,
		Output:     out,
		Stop:       stop,
		OnTurnDone: func(gen uint64) { done <- gen },
	})
	p.Start(context.Background())
	p.Submit(Unit{Gen: 1, Text: "never spoken."})
	p.EndTurn(1)
	waitTurn(t, done, 1)
	p.Close()

	if synth.callCount() != 0 {
		t.Errorf("synth calls = %d; want 0 while stopped", synth.callCount())
	}
	if out.written() != 0 {
		t.Error("audio played while stopped")
	}
}

func TestPipelineDrainByGeneration(t *testing.T) {
	q := buffer.NewQueue[Unit](8)
	pl := buffer.NewQueue[Blob](8)
	p := &Pipeline{cfg: Config{Stop: new(atomic.Bool)}, synth: q, play: pl}

	q.Put(Unit{Gen: 1, Text: "old"})
	q.Put(Unit{Gen: 2, Text: "current"})
	q.Put(Unit{Gen: 1, End: true})
	pl.Put(Blob{Gen: 1, WAV: []byte("x")})
	pl.Put(Blob{Gen: 2, WAV: []byte("y")})

	// The gen-1 end sentinel is spared, per-turn completion depends on it.
	if n := p.Drain(1); n != 2 {
		t.Fatalf("Drain(1) = %d; want 2", n)
	}
	if q.Len() != 2 || pl.Len() != 1 {
		t.Errorf("remaining synth=%d play=%d; want 2 and 1", q.Len(), pl.Len())
	}
}

func TestDrainAfterEndTurnStillCompletes(t *testing.T) {
	synth := &fakeSynth{}
	stop := new(atomic.Bool)
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    synth,
		Output:     &fakeOutput{},
		Stop:       stop,
		OnTurnDone: func(gen uint64) { done <- gen },
	})

	// Queue the turn's tail and its end marker before the workers run,
	// then barge in: the drain lands after EndTurn, like a user talking
	// over the last seconds of a finished turn.
	p.Submit(Unit{Gen: 1, Text: "もう聞かれない結びの一文。"})
	p.EndTurn(1)
	stop.Store(true)
	p.Drain(1)

	p.Start(context.Background())
	waitTurn(t, done, 1)
	p.Close()

	if synth.callCount() != 0 {
		t.Errorf("synth calls = %d; want 0 after drain", synth.callCount())
	}
}

func TestPipelineResplitsLongUnit(t *testing.T) {
	synth := &fakeSynth{}
	done := make(chan uint64, 1)

	p := New(Config{
		Primary:    synth,
		Output:     &fakeOutput{},
		OnTurnDone: func(gen uint64) { done <- gen },
	})
	p.Start(context.Background())

	long := strings.Repeat("あ", 120) + "、" + strings.Repeat("い", 30)
	p.Submit(Unit{Gen: 1, Text: long})
	p.EndTurn(1)
	waitTurn(t, done, 1)
	p.Close()

	if synth.callCount() != 2 {
		t.Errorf("synth calls = %d; want 2 after re-split", synth.callCount())
	}
}
