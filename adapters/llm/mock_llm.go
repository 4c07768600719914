package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/repositories"
)

// MockLLM answers every prompt with a canned Spanish reply
type MockLLM struct {
	logger *zap.Logger
}

// NewMockLLM creates a new mock completion client
func NewMockLLM(logger *zap.Logger) repositories.LargeLanguageModel {
	return &MockLLM{logger: logger}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.logger.Info("Processing mock completion", zap.Int("promptLength", len(prompt)))

	if prompt == "" {
		return "Hola, ¿en qué puedo ayudarte?", nil
	}
	return fmt.Sprintf("Has dicho: «%s». ¿Quieres saber algo más?", prompt), nil
}
