package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const DefaultModel = "gpt-4o-mini"

// OpenAI translates with the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model   string
	options []option.RequestOption
}

func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIConfig) {
		if client != nil {
			c.options = append(c.options, option.WithHTTPClient(client))
		}
	}
}

func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.options = append(c.options, option.WithBaseURL(url))
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrNoProvider)
	}
	cfg := openAIConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)
	return &OpenAI{client: openai.NewClient(reqOpts...), model: cfg.model}, nil
}

func (o *OpenAI) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the user's %s caption into %s. Reply with the translation only, no quotes or notes.",
		display.English.Tags().Name(source), display.English.Tags().Name(target))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyTranslation
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
