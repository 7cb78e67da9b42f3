// Package llm wraps the chat-completion API used for website content
// generation and scoring.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "claude-sonnet-4-5"

// ErrNotConfigured means no API key was supplied.
var ErrNotConfigured = errors.New("LLM_API_KEY is not set")

// ErrEmptyCompletion means the response carried no text.
var ErrEmptyCompletion = errors.New("completion returned no text")

// Completer produces one assistant reply for a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client implements Completer on the Anthropic Messages API.
type Client struct {
	api         anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New builds a Client. Extra request options are appended after the key,
// which lets tests point the client at a local server.
func New(o Options, extra ...option.RequestOption) (*Client, error) {
	if o.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	opts := append([]option.RequestOption{option.WithAPIKey(o.APIKey)}, extra...)
	return &Client{
		api:         anthropic.NewClient(opts...),
		model:       o.Model,
		maxTokens:   int64(o.MaxTokens),
		temperature: o.Temperature,
	}, nil
}

// Complete sends system and prompt and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Client.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.model), attribute.Int("prompt_len", len(prompt)))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	span.SetAttributes(attribute.Int("completion_len", b.Len()))
	return b.String(), nil
}
