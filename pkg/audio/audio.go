// Package audio defines the sample types and device interfaces shared by
// the transcriber and the playback worker.
//
// All pipeline audio is mono float32 PCM in [-1, 1] at 16 kHz. Capture
// and output devices are external collaborators behind the Source and
// Output interfaces.
package audio

import (
	"context"
	"math"
)

// SampleRate is the fixed pipeline sample rate in Hz.
const SampleRate = 16000

// Frame is a slice of mono float32 PCM samples at SampleRate,
// typically 20–30 ms of audio.
type Frame []float32

// Duration returns the frame length in seconds.
func (f Frame) Duration() float64 {
	return float64(len(f)) / SampleRate
}

// RMS returns the root-mean-square amplitude of the frame.
func (f Frame) RMS() float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(f)))
}

// Source is a capture device delivering frames to a sink until stopped.
type Source interface {
	// Start begins capture, invoking sink for every frame. It returns
	// once capture is running; frames are delivered on a device thread.
	Start(ctx context.Context, sink func(Frame)) error

	// Stop ends capture. Idempotent.
	Stop() error
}

// Output is a playback device accepting small sample chunks.
type Output interface {
	// Write plays the given samples, blocking until the device has
	// consumed them.
	Write(samples []float32) error

	// Playing reports whether the device is currently emitting audio.
	Playing() bool

	// Close releases the device.
	Close() error
}

// FloatsToInt16 converts normalized float32 samples to signed 16-bit,
// clipping out-of-range values.
func FloatsToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// Int16ToFloats converts signed 16-bit samples to normalized float32.
func Int16ToFloats(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}
