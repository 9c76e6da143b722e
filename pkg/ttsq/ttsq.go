// Package ttsq runs the two-stage speech output pipeline: a synthesis
// worker turning text units into audio blobs, feeding a playback worker
// that streams samples to the speaker. Both stages honor a shared stop
// signal, and every item carries the generation of the turn it belongs
// to so a barge-in can drain exactly one turn's output.
package ttsq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/guri-assistant/guri/pkg/audio"
	"github.com/guri-assistant/guri/pkg/buffer"
	"github.com/guri-assistant/guri/pkg/speech"
)

const (
	synthQueueCap = 32
	playQueueCap  = 8

	// Playback re-checks the stop signal every chunk; at 16 kHz a
	// 320-sample chunk bounds the abandon latency to 20 ms of audio.
	playChunk = 320
)

// Unit is one fragment of a turn's response text, or the end-of-turn
// sentinel when End is set.
type Unit struct {
	Gen  uint64
	Text string
	End  bool
}

// Blob is synthesized audio for one Unit, WAV-encoded.
type Blob struct {
	Gen uint64
	WAV []byte
	End bool
}

// Config wires a Pipeline. Primary is required; Secondary, when set, is
// tried after a Primary failure. Stop is the process-wide barge-in
// signal, asserted by the orchestrator and only observed here.
type Config struct {
	Primary   speech.Synthesizer
	Secondary speech.Synthesizer
	VoiceID   string
	Output    audio.Output
	Stop      *atomic.Bool
	// OnTurnDone fires on the playback worker's goroutine when a
	// turn's end sentinel reaches it.
	OnTurnDone func(gen uint64)
	Logger     *slog.Logger
}

type Pipeline struct {
	cfg     Config
	synth   *buffer.Queue[Unit]
	play    *buffer.Queue[Blob]
	playing atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stop == nil {
		cfg.Stop = new(atomic.Bool)
	}
	return &Pipeline{
		cfg:   cfg,
		synth: buffer.NewQueue[Unit](synthQueueCap),
		play:  buffer.NewQueue[Blob](playQueueCap),
	}
}

// Start launches the two workers. ctx bounds synthesis calls; cancel it
// only at shutdown.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.synthLoop(ctx)
	go p.playLoop()
}

// Submit enqueues a unit, blocking while the synthesis queue is full.
func (p *Pipeline) Submit(u Unit) error {
	return p.synth.Put(u)
}

// EndTurn enqueues the end sentinel for gen. When it reaches the
// playback worker, OnTurnDone fires.
func (p *Pipeline) EndTurn(gen uint64) error {
	return p.synth.Put(Unit{Gen: gen, End: true})
}

// Drain removes every queued item belonging to gen from both stages and
// reports how many were dropped. End sentinels are spared so the turn
// still completes: a generation gets exactly one end marker no matter
// how late the barge-in lands. The blob currently being played is not
// touched; the playback worker abandons it on its own when the stop
// signal is set.
func (p *Pipeline) Drain(gen uint64) int {
	n := p.synth.Drain(func(u Unit) bool { return u.Gen == gen && !u.End })
	n += p.play.Drain(func(b Blob) bool { return b.Gen == gen && !b.End })
	return n
}

// Playing reports whether the playback worker is mid-blob.
func (p *Pipeline) Playing() bool {
	return p.playing.Load()
}

// Busy reports whether any audio is queued or playing. The idle
// commentator's busy predicate reads this.
func (p *Pipeline) Busy() bool {
	return p.synth.Len() > 0 || p.play.Len() > 0 ||
		p.playing.Load() || p.cfg.Output.Playing()
}

// Close shuts both stages down after the queued work drains.
func (p *Pipeline) Close() {
	p.synth.CloseWrite()
	p.wg.Wait()
}

func (p *Pipeline) synthLoop(ctx context.Context) {
	defer p.wg.Done()
	defer p.play.CloseWrite()
	for {
		u, err := p.synth.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.cfg.Logger.Error("ttsq: synthesis queue", "error", err)
			}
			return
		}
		if u.End {
			p.play.Put(Blob{Gen: u.Gen, End: true})
			continue
		}
		if p.cfg.Stop.Load() {
			continue
		}
		for _, text := range speech.SplitLong(u.Text, speech.MaxUnitRunes) {
			wav, err := p.synthesize(ctx, text)
			if err != nil {
				p.cfg.Logger.Error("ttsq: synthesis failed, dropping unit",
					"gen", u.Gen, "len", len(text), "error", err)
				continue
			}
			if p.cfg.Stop.Load() {
				break
			}
			if err := p.play.Put(Blob{Gen: u.Gen, WAV: wav}); err != nil {
				return
			}
		}
	}
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	wav, err := p.cfg.Primary.Synthesize(ctx, text, p.cfg.VoiceID)
	if err == nil {
		return wav, nil
	}
	if p.cfg.Secondary == nil {
		return nil, err
	}
	p.cfg.Logger.Warn("ttsq: primary backend failed, trying secondary", "error", err)
	return p.cfg.Secondary.Synthesize(ctx, text, p.cfg.VoiceID)
}

func (p *Pipeline) playLoop() {
	defer p.wg.Done()
	for {
		b, err := p.play.Next()
		if err != nil {
			return
		}
		if b.End {
			if p.cfg.OnTurnDone != nil {
				p.cfg.OnTurnDone(b.Gen)
			}
			continue
		}
		p.playBlob(b)
	}
}

func (p *Pipeline) playBlob(b Blob) {
	samples, rate, err := audio.DecodeWAV(b.WAV)
	if err != nil {
		p.cfg.Logger.Error("ttsq: bad audio blob", "gen", b.Gen, "error", err)
		return
	}
	if rate != audio.SampleRate {
		samples, err = audio.Resample(samples, rate, audio.SampleRate)
		if err != nil {
			p.cfg.Logger.Error("ttsq: bad audio blob", "gen", b.Gen, "error", err)
			return
		}
	}

	p.playing.Store(true)
	defer p.playing.Store(false)
	for off := 0; off < len(samples); off += playChunk {
		if p.cfg.Stop.Load() {
			return
		}
		end := off + playChunk
		if end > len(samples) {
			end = len(samples)
		}
		p.cfg.Output.Write(samples[off:end])
	}
}
