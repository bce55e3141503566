package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/semlab/sembench/internal/apperrors"
)

var (
	// ErrEmptyPrompt is returned when Generate is called with an empty prompt.
	ErrEmptyPrompt = errors.New("generation: prompt is empty")
)

const defaultModel = openaisdk.ChatModelGPT4oMini

// OpenAIClient calls the OpenAI chat completions API via the official SDK.
type OpenAIClient struct {
	sdk   openaisdk.Client
	model openaisdk.ChatModel
}

// OpenAIOption configures the OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the chat model.
func WithModel(model openaisdk.ChatModel) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// NewOpenAIClient creates a generation client using the official SDK. The
// underlying HTTP client retries transient transport failures; the
// orchestrator's per-trial retry policy sits above that.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil

	client := &OpenAIClient{
		sdk: openaisdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(retryClient.StandardClient()),
		),
		model: defaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Generate returns the completion text for the prompt at the given
// temperature. API failures surface as retryable CollaboratorErrors so the
// orchestrator can apply its trial retry cap.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: param.NewOpt(temperature),
	})
	if err != nil {
		return "", apperrors.NewCollaboratorError("generation", err.Error())
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewCollaboratorError("generation", "no completion in response")
	}

	return resp.Choices[0].Message.Content, nil
}
