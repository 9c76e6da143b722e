package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/guri-assistant/guri/pkg/audio"
)

const bridgeTimeout = 10 * time.Second

// Bridge speaks to a local VOICEVOX-compatible engine over HTTP. The
// engine runs as a sidecar process; synthesis is a two-step exchange of
// an audio query followed by the synthesis call proper.
type Bridge struct {
	base   string
	client *http.Client
}

// NewBridge creates a Bridge for the engine at base, e.g.
// "http://127.0.0.1:50021".
func NewBridge(base string) *Bridge {
	return &Bridge{
		base:   base,
		client: &http.Client{Timeout: bridgeTimeout},
	}
}

func (b *Bridge) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	speaker, err := strconv.Atoi(voiceID)
	if err != nil {
		return nil, fmt.Errorf("speech: bridge voice id %q: %w", voiceID, ErrNoVoice)
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(speaker))
	query, err := b.post(ctx, "/audio_query?"+q.Encode(), "", nil)
	if err != nil {
		return nil, fmt.Errorf("speech: bridge audio_query: %w", err)
	}

	s := url.Values{}
	s.Set("speaker", strconv.Itoa(speaker))
	wav, err := b.post(ctx, "/synthesis?"+s.Encode(), "application/json", query)
	if err != nil {
		return nil, fmt.Errorf("speech: bridge synthesis: %w", err)
	}

	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("speech: bridge output: %w", err)
	}
	if rate != audio.SampleRate {
		samples, err = audio.Resample(samples, rate, audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("speech: bridge output: %w", err)
		}
	}
	return audio.EncodeWAV(samples, audio.SampleRate), nil
}

func (b *Bridge) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/speakers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: bridge speakers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: bridge speakers: status %d", resp.StatusCode)
	}

	var speakers []struct {
		Name   string `json:"name"`
		Styles []struct {
			Name string `json:"name"`
			ID   int    `json:"id"`
		} `json:"styles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("speech: bridge speakers: %w", err)
	}

	var voices []Voice
	for _, sp := range speakers {
		for _, st := range sp.Styles {
			voices = append(voices, Voice{
				ID:    strconv.Itoa(st.ID),
				Name:  sp.Name,
				Style: st.Name,
			})
		}
	}
	return voices, nil
}

// WaitReady polls the speaker listing until the engine answers, for use
// right after the supervisor has launched the sidecar.
func (b *Bridge) WaitReady(ctx context.Context) error {
	var err error
	for i := 0; i < remoteProbeTries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remoteProbeDelay):
			}
		}
		if _, err = b.ListVoices(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("speech: bridge not ready: %w", err)
}

// Preload asks the engine to load the voice's model ahead of the first
// synthesis call.
func (b *Bridge) Preload(ctx context.Context, voiceID string) error {
	q := url.Values{}
	q.Set("speaker", voiceID)
	_, err := b.post(ctx, "/initialize_speaker?"+q.Encode(), "", nil)
	if err != nil {
		return fmt.Errorf("speech: bridge initialize_speaker: %w", err)
	}
	return nil
}

func (b *Bridge) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 200))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
