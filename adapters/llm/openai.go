package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/repositories"
)

const (
	defaultCompletionBaseURL = "https://api.groq.com/openai/v1"
	defaultCompletionModel   = "llama-3.3-70b-versatile"
)

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	APIKey     string // Required
	BaseURL    string // Optional, Groq by default
	Model      string // Optional
	HTTPClient *http.Client
}

// OpenAICompletion implements LargeLanguageModel with one chat message per request
type OpenAICompletion struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAICompletion)(nil)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("completion API key is required")
	}
	return nil
}

// NewOpenAICompletion creates a completion client
func NewOpenAICompletion(config OpenAIConfig, logger *zap.Logger) (*OpenAICompletion, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCompletionBaseURL
		logger.Info("Using default completion base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultCompletionModel
		logger.Info("Using default completion model", zap.String("model", model))
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = baseURL
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &OpenAICompletion{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// Complete sends prompt as the only user message and returns the first choice
func (c *OpenAICompletion) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	c.logger.Debug("Sending completion request", zap.String("model", c.model), zap.Int("promptLength", len(prompt)))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("Completion request failed", zap.Error(err))
		return "", domain.Wrap(domain.KindCompletionFailed, describeOpenAIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", domain.Wrap(domain.KindCompletionFailed, errors.New("response has no choices"))
	}

	content := resp.Choices[0].Message.Content
	c.logger.Info("Completion received",
		zap.String("model", resp.Model),
		zap.Int("responseLength", len(content)),
		zap.Int("totalTokens", resp.Usage.TotalTokens))
	return content, nil
}

// describeOpenAIError renders upstream failures as "<status> - <message>"
func describeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.HTTPStatusCode)
		}
		return fmt.Errorf("%d - %s", apiErr.HTTPStatusCode, msg)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%d - %s", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}

	return err
}
