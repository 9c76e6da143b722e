package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder converts text into a dense float32 vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAICompat implements Client against any OpenAI-compatible chat and
// embeddings endpoint. It is the fallback dialogue engine and the
// default embedder.
type OpenAICompat struct {
	client     *openai.Client
	model      string
	embedModel string
	embedDim   int
}

var (
	_ Client   = (*OpenAICompat)(nil)
	_ Embedder = (*OpenAICompat)(nil)
)

// OpenAIOption configures an OpenAICompat client.
type OpenAIOption func(*OpenAICompat, *[]option.RequestOption)

// WithOpenAIModel sets the chat model. Default "gpt-4o-mini".
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAICompat, _ *[]option.RequestOption) { c.model = model }
}

// WithOpenAIBaseURL points the client at a compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(_ *OpenAICompat, ro *[]option.RequestOption) {
		*ro = append(*ro, option.WithBaseURL(url))
	}
}

// WithEmbedModel sets the embedding model and output dimension.
// Default "text-embedding-3-small" at 1536.
func WithEmbedModel(model string, dim int) OpenAIOption {
	return func(c *OpenAICompat, _ *[]option.RequestOption) {
		c.embedModel = model
		c.embedDim = dim
	}
}

// NewOpenAICompat creates an OpenAI-compatible client.
func NewOpenAICompat(apiKey string, opts ...OpenAIOption) *OpenAICompat {
	c := &OpenAICompat{
		model:      "gpt-4o-mini",
		embedModel: "text-embedding-3-small",
		embedDim:   1536,
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(c, &reqOpts)
	}
	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c
}

func (c *OpenAICompat) params(req *Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.History {
		text := turn.Content
		if turn.Name != "" {
			text = turn.Name + ": " + text
		}
		if turn.Role == RoleModel {
			messages = append(messages, openai.AssistantMessage(text))
		} else {
			messages = append(messages, openai.UserMessage(text))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	return openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
}

// AskStream opens a streaming chat completion. Image attachments are not
// supported by this engine and are silently ignored.
func (c *OpenAICompat) AskStream(ctx context.Context, req *Request) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, builder := newChunkStream(cancel)
	sse := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	go func() {
		for sse.Next() {
			chunk := sse.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if err := builder.add(text); err != nil {
					return
				}
			}
		}
		if err := sse.Err(); err != nil {
			builder.abort(fmt.Errorf("llm: openai stream: %w", err))
			return
		}
		builder.done()
	}()
	return stream, nil
}

// Ask performs a blocking chat completion.
func (c *OpenAICompat) Ask(ctx context.Context, req *Request) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("llm: openai ask: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding for text.
func (c *OpenAICompat) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("llm: embed empty text")
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          c.embedModel,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Dimensions:     openai.Int(int64(c.embedDim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("llm: embed returned no data")
	}
	f64 := resp.Data[0].Embedding
	vec := make([]float32, len(f64))
	for i, v := range f64 {
		vec[i] = float32(v)
	}
	return vec, nil
}
