package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

// MockSpeechToText is a deterministic transcriber for development
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// Transcribe picks a canned transcript from the audio size
func (s *MockSpeechToText) Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audio.Data)),
		zap.Int("sampleRate", audio.Format.SampleRate),
		zap.String("encoding", audio.Format.Encoding))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case len(audio.Data) > 10000:
		return "Hola, ¿qué tiempo hace hoy en Madrid?", nil
	case len(audio.Data) > 5000:
		return "Cuéntame un dato curioso.", nil
	case len(audio.Data) > 1000:
		return "Hola", nil
	default:
		return "", nil
	}
}
