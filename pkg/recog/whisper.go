package recog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/guri-assistant/guri/pkg/audio"
)

// Whisper recognizes speech through a whisper.cpp style inference
// server. Each pass posts the utterance buffer as WAV; the server is
// stateless, so Reset has nothing to do.
type Whisper struct {
	base     string
	language string
	client   *http.Client
}

func NewWhisper(base, language string) *Whisper {
	if language == "" {
		language = "ja"
	}
	return &Whisper{
		base:     base,
		language: language,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Whisper) Recognize(ctx context.Context, samples []float32) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio.EncodeWAV(samples, audio.SampleRate)); err != nil {
		return "", err
	}
	mw.WriteField("language", w.language)
	mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/inference", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recog: whisper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("recog: whisper: status %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("recog: whisper: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

func (w *Whisper) Reset() error { return nil }
