// Package llm provides the language-model collaborator used by the
// orchestrator: streaming dialogue, one-shot asks, text embeddings, and
// the summarization helpers built on top of them.
//
// Two implementations are provided: [Gemini] (Google genai, the primary
// engine, with image input and thinking control) and [OpenAICompat]
// (any OpenAI-compatible endpoint, also serving as the embedder).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Role identifies who produced a history turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of conversation history sent as context.
type Turn struct {
	Role    Role
	Name    string
	Content string
}

// Request is one dialogue request.
type Request struct {
	// System is the system instruction.
	System string

	// History is the prior conversation, oldest first.
	History []Turn

	// Prompt is the new user message.
	Prompt string

	// Image is an optional PNG screenshot attached to the prompt.
	Image []byte
}

// Stream yields incremental response text. Next returns iterator.Done
// after the final chunk.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Client is the language-model interface the pipeline consumes.
type Client interface {
	// AskStream opens a streaming dialogue call.
	AskStream(ctx context.Context, req *Request) (Stream, error)

	// Ask performs a blocking dialogue call and returns the full text.
	Ask(ctx context.Context, req *Request) (string, error)

	// Embed returns the embedding vector for text, or (nil, nil) when
	// the client has no embedding capability.
	Embed(ctx context.Context, text string) ([]float32, error)
}

const summarizePrompt = `以下の会話履歴を、最も重要な事実だけを残して1文に要約してください。要約文のみを出力してください。`

// Summarize reduces a conversation history to at most one sentence.
func Summarize(ctx context.Context, c Client, history string) (string, error) {
	if strings.TrimSpace(history) == "" {
		return "", fmt.Errorf("llm: empty history")
	}
	out, err := c.Ask(ctx, &Request{
		System: summarizePrompt,
		Prompt: history,
	})
	if err != nil {
		return "", fmt.Errorf("llm: summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}

const blogPrompt = `あなたはゲーム配信の記録係です。以下のセッション履歴から、ブログ記事をJSONで出力してください。
形式: {"title": "記事タイトル", "body": "Markdown本文"}
JSONのみを出力してください。`

// BlogPost is the structured output of GenerateBlog.
type BlogPost struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// GenerateBlog produces a blog post from a session history. Returns nil
// when the model output cannot be recovered into valid JSON.
func GenerateBlog(ctx context.Context, c Client, history string) (*BlogPost, error) {
	out, err := c.Ask(ctx, &Request{
		System: blogPrompt,
		Prompt: history,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: generate blog: %w", err)
	}
	var post BlogPost
	if err := unmarshalRepaired([]byte(out), &post); err != nil {
		return nil, fmt.Errorf("llm: blog output not recoverable: %w", err)
	}
	if post.Title == "" && post.Body == "" {
		return nil, fmt.Errorf("llm: blog output empty")
	}
	return &post, nil
}

// unmarshalRepaired unmarshals JSON, running the data through jsonrepair
// before retrying when the model emitted malformed output (markdown
// fences, trailing commas, truncation).
func unmarshalRepaired(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	fixed, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	return json.Unmarshal([]byte(fixed), v)
}
