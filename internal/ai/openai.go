package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
)

// Client wraps the OpenAI chat-completion API behind the single operation the
// auto-reply dispatcher needs.
type Client struct {
	client openai.Client
}

// NewClient creates a completion client with the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai apiKey cannot be empty")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Complete runs one chat completion and returns the reply text. An empty
// string without error means the model produced nothing to send.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText, model string, temperature float64) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userText))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		log.Warn().Str("model", model).Msg("Completion returned no choices")
		return "", nil
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	log.Debug().
		Str("model", model).
		Int64("promptTokens", completion.Usage.PromptTokens).
		Int64("completionTokens", completion.Usage.CompletionTokens).
		Msg("Completion finished")
	return reply, nil
}
