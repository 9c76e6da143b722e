package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini implements Client using the Google Gemini API.
type Gemini struct {
	client          *genai.Client
	model           string
	disableThinking bool
	embedder        Embedder
}

var _ Client = (*Gemini)(nil)

// GeminiOption configures a Gemini client.
type GeminiOption func(*Gemini)

// WithGeminiModel sets the model name. Default "gemini-2.0-flash".
func WithGeminiModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithDisableThinking sets the thinking budget to zero, trading response
// quality for latency.
func WithDisableThinking(disable bool) GeminiOption {
	return func(g *Gemini) { g.disableThinking = disable }
}

// WithGeminiEmbedder delegates Embed calls to a separate embedder.
// Without one, Embed reports no capability.
func WithGeminiEmbedder(e Embedder) GeminiOption {
	return func(g *Gemini) { g.embedder = e }
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	g := &Gemini{
		client: client,
		model:  "gemini-2.0-flash",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gemini) config(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdOff},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdOff},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdOff},
		},
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if g.disableThinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](0),
		}
	}
	return cfg
}

func (g *Gemini) contents(req *Request) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range req.History {
		role := genai.RoleUser
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		text := turn.Content
		if turn.Name != "" {
			text = turn.Name + ": " + text
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		})
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, "image/png"))
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
	return contents
}

// AskStream opens a streaming dialogue call.
func (g *Gemini) AskStream(ctx context.Context, req *Request) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, builder := newChunkStream(cancel)
	go func() {
		if err := geminiPull(builder, g.client.Models.GenerateContentStream(ctx, g.model, g.contents(req), g.config(req))); err != nil {
			builder.abort(err)
		}
	}()
	return stream, nil
}

func geminiPull(builder *streamBuilder, itr iter.Seq2[*genai.GenerateContentResponse, error]) error {
	for chunk, err := range itr {
		if err != nil {
			return err
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		if cand.Content != nil {
			var sb strings.Builder
			for _, p := range cand.Content.Parts {
				if p.Text != "" && !p.Thought {
					sb.WriteString(p.Text)
				}
			}
			if err := builder.add(sb.String()); err != nil {
				return nil // consumer closed the stream
			}
		}
		switch cand.FinishReason {
		case genai.FinishReasonUnspecified, "":
		case genai.FinishReasonStop:
			builder.done()
			return nil
		default:
			return fmt.Errorf("llm: gemini finish reason %s", cand.FinishReason)
		}
	}
	builder.done()
	return nil
}

// Ask performs a blocking dialogue call.
func (g *Gemini) Ask(ctx context.Context, req *Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, g.contents(req), g.config(req))
	if err != nil {
		return "", fmt.Errorf("llm: gemini ask: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("llm: gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

// Embed delegates to the configured embedder, or reports no capability.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.embedder == nil {
		return nil, nil
	}
	return g.embedder.Embed(ctx, text)
}
