package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	remoteSynthTimeout  = 60 * time.Second
	remoteWarmupTimeout = 5 * time.Minute
	remoteProbeTries    = 15
	remoteProbeDelay    = time.Second
)

// Remote speaks to a large-model synthesis server over HTTP. Such
// servers load multi-gigabyte weights on demand, so synthesis and
// warmup carry far longer deadlines than the local bridge.
type Remote struct {
	base   string
	client *http.Client
}

func NewRemote(base string) *Remote {
	// Deadlines are per call; warmup alone needs minutes.
	return &Remote{base: base, client: &http.Client{}}
}

func (r *Remote) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteSynthTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"text": text, "voice": voiceID})
	if err != nil {
		return nil, err
	}
	wav, err := r.post(ctx, "/synthesize", body)
	if err != nil {
		return nil, fmt.Errorf("speech: remote synthesis: %w", err)
	}
	return wav, nil
}

func (r *Remote) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/voices", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: remote voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: remote voices: status %d", resp.StatusCode)
	}
	var voices []Voice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("speech: remote voices: %w", err)
	}
	return voices, nil
}

// Preload asks the server to load the voice's weights. The call blocks
// until the model is resident, which can take minutes on first use.
func (r *Remote) Preload(ctx context.Context, voiceID string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteWarmupTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"voice": voiceID})
	if err != nil {
		return err
	}
	if _, err := r.post(ctx, "/warmup", body); err != nil {
		return fmt.Errorf("speech: remote warmup: %w", err)
	}
	return nil
}

// WaitReady polls the voice listing until the server answers, for use at
// startup while the sidecar is still coming up.
func (r *Remote) WaitReady(ctx context.Context) error {
	var err error
	for i := 0; i < remoteProbeTries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remoteProbeDelay):
			}
		}
		if _, err = r.ListVoices(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("speech: remote not ready: %w", err)
}

func (r *Remote) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 200))
	}
	return data, nil
}
