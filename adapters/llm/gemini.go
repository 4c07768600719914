package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/repositories"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultMaxOutputTokens = 1024
)

// GeminiConfig holds configuration for the Gemini adapter
// Required fields:
// - APIKey
// Optional fields with defaults:
// - Model (default: "gemini-2.0-flash")
// - Temperature between 0 and 1 (provider default when zero)
// - MaxOutputTokens (default: 1024)
// - BaseURL overrides the API endpoint
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	BaseURL         string
}

// GeminiLLM implements LargeLanguageModel using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int
	logger          *zap.Logger
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	return nil
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxOutputTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client:          client,
		model:           model,
		temperature:     config.Temperature,
		maxOutputTokens: maxOutputTokens,
		logger:          logger,
	}, nil
}

// Complete sends prompt as a single user turn without history
func (g *GeminiLLM) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(g.temperature)
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Failed to generate content", zap.Error(err))
		return "", domain.Wrap(domain.KindCompletionFailed, describeGeminiError(err))
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", domain.Wrap(domain.KindCompletionFailed, errors.New("response has no candidates"))
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	g.logger.Info("Completion received",
		zap.String("model", g.model),
		zap.Int("responseLength", text.Len()))
	return text.String(), nil
}

// describeGeminiError renders API failures as "<code> - <message>"
func describeGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return formatGeminiError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return formatGeminiError(*apiErrPtr)
	}
	return err
}

func formatGeminiError(apiErr genai.APIError) error {
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	return fmt.Errorf("%d - %s", apiErr.Code, msg)
}
