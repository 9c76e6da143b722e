package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV container handling for the blobs that travel between the synthesis
// and playback workers. Only PCM16 mono/stereo is supported, which is
// what every wired TTS backend produces.

var errShortWAV = errors.New("audio: truncated wav data")

// EncodeWAV wraps float32 samples in a PCM16 WAV container at the given
// sample rate.
func EncodeWAV(samples []float32, rate int) []byte {
	pcm := FloatsToInt16(samples)
	dataLen := len(pcm) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAV extracts mono float32 samples and the sample rate from a
// PCM16 WAV container. Stereo input is downmixed by averaging.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("audio: not a wav container")
	}

	var (
		rate     int
		channels int
		bits     int
		pcm      []byte
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, 0, errShortWAV
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errShortWAV
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word aligned.
		off = body + size + size%2
	}

	if rate == 0 || pcm == nil {
		return nil, 0, errShortWAV
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("audio: unsupported bit depth %d", bits)
	}
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("audio: unsupported channel count %d", channels)
	}

	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var acc float32
		for c := 0; c < channels; c++ {
			s := int16(binary.LittleEndian.Uint16(pcm[(i*channels+c)*2:]))
			acc += float32(s) / 32768
		}
		out[i] = acc / float32(channels)
	}
	return out, rate, nil
}
