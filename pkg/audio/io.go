package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// frameSamples is the capture frame size handed to the sink (~20 ms).
const frameSamples = 320

// FileSource replays a WAV file as if it were a live microphone,
// pacing frames at real time. Useful for scripted sessions and tests.
type FileSource struct {
	Path string

	// Realtime paces delivery; off, the whole file is delivered as
	// fast as the sink accepts it.
	Realtime bool

	cancel context.CancelFunc
	done   chan struct{}
}

func (f *FileSource) Start(ctx context.Context, sink func(Frame)) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("audio: %s: %w", f.Path, err)
	}
	if rate != SampleRate {
		samples, err = Resample(samples, rate, SampleRate)
		if err != nil {
			return fmt.Errorf("audio: %s: %w", f.Path, err)
		}
	}

	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		tick := time.Duration(frameSamples) * time.Second / SampleRate
		for off := 0; off < len(samples); off += frameSamples {
			if ctx.Err() != nil {
				return
			}
			end := off + frameSamples
			if end > len(samples) {
				end = len(samples)
			}
			sink(Frame(samples[off:end]))
			if f.Realtime {
				select {
				case <-ctx.Done():
					return
				case <-time.After(tick):
				}
			}
		}
	}()
	return nil
}

func (f *FileSource) Stop() error {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	return nil
}

// RecorderSource captures the microphone through an external recorder
// process emitting raw 16 kHz mono 16-bit PCM on stdout.
type RecorderSource struct {
	// Command and Args name the recorder binary. Empty picks arecord.
	Command string
	Args    []string

	// Device selects the capture device for the default recorder.
	// Empty records from the system default.
	Device string

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *RecorderSource) command() (string, []string) {
	if r.Command != "" {
		return r.Command, r.Args
	}
	args := []string{"-q", "-r", "16000", "-f", "S16_LE", "-c", "1", "-t", "raw"}
	if r.Device != "" {
		args = append(args, "-D", r.Device)
	}
	return "arecord", args
}

func (r *RecorderSource) Start(ctx context.Context, sink func(Frame)) error {
	name, args := r.command()
	ctx, r.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start recorder %s: %w", name, err)
	}
	r.cmd = cmd
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		defer cmd.Wait()
		buf := make([]byte, frameSamples*2)
		for {
			if _, err := io.ReadFull(stdout, buf); err != nil {
				return
			}
			pcm := make([]int16, frameSamples)
			for i := range pcm {
				pcm[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
			}
			sink(Frame(Int16ToFloats(pcm)))
		}
	}()
	return nil
}

func (r *RecorderSource) Stop() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return nil
}

// PlayerOutput streams PCM to an external player process, one short-
// lived pipe per write burst kept open while samples keep coming.
// The default command plays 16 kHz mono 16-bit PCM from stdin.
type PlayerOutput struct {
	// Command and Args name the player binary. Empty picks aplay.
	Command string
	Args    []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	playing bool
	lastAt  time.Time
}

func (o *PlayerOutput) command() (string, []string) {
	if o.Command != "" {
		return o.Command, o.Args
	}
	return "aplay", []string{"-q", "-r", "16000", "-f", "S16_LE", "-c", "1", "-t", "raw"}
}

// Write blocks until the player accepted the samples.
func (o *PlayerOutput) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ensureLocked(); err != nil {
		return err
	}

	pcm := FloatsToInt16(samples)
	buf := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	o.playing = true
	o.lastAt = time.Now()
	if _, err := o.stdin.Write(buf); err != nil {
		o.closeLocked()
		return fmt.Errorf("audio: player write: %w", err)
	}
	return nil
}

// Playing reports whether audio was written recently enough that the
// device is still draining it.
func (o *PlayerOutput) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		return false
	}
	// The player buffers roughly this much beyond the last write.
	if time.Since(o.lastAt) > 300*time.Millisecond {
		o.playing = false
	}
	return o.playing
}

func (o *PlayerOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
	return nil
}

func (o *PlayerOutput) ensureLocked() error {
	if o.cmd != nil {
		return nil
	}
	name, args := o.command()
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start player %s: %w", name, err)
	}
	o.cmd = cmd
	o.stdin = stdin
	return nil
}

func (o *PlayerOutput) closeLocked() {
	if o.cmd == nil {
		return
	}
	o.stdin.Close()
	o.cmd.Wait()
	o.cmd = nil
	o.stdin = nil
	o.playing = false
}
