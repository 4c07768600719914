package tts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

// MockTTS produces silent PCM proportional to the text length
type MockTTS struct {
	voices     []entities.Voice
	chunkDelay time.Duration
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

// mockBytesPerRune approximates 24kHz 16-bit PCM at a conversational pace
const mockBytesPerRune = 3200

// NewMockTTS creates a mock engine offering a fixed set of Spanish voices
func NewMockTTS(logger *zap.Logger) *MockTTS {
	return &MockTTS{
		voices: []entities.Voice{
			{ID: "mock-lucia", Name: "Lucia", Locale: "es-ES"},
			{ID: "mock-jorge", Name: "Jorge", Locale: "es-MX"},
			{ID: "mock-emma", Name: "Emma", Locale: "en-US"},
		},
		chunkDelay: 20 * time.Millisecond,
		logger:     logger,
	}
}

// Synthesize streams zeroed audio, one chunk per word-sized slice
func (m *MockTTS) Synthesize(ctx context.Context, text string, voice entities.Voice, params entities.VoiceParams) (<-chan []byte, <-chan error) {
	audioChan := make(chan []byte)
	errChan := make(chan error)

	m.logger.Info("Processing mock text-to-speech",
		zap.Int("textLength", len(text)),
		zap.String("voice", voice.Name),
		zap.Float64("rate", params.Rate))

	go func() {
		defer close(audioChan)
		defer close(errChan)

		remaining := len([]rune(text)) * mockBytesPerRune
		for remaining > 0 {
			n := min(remaining, 8*mockBytesPerRune)
			remaining -= n

			select {
			case audioChan <- make([]byte, n):
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(m.chunkDelay):
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioChan, errChan
}

// ListVoices implements repositories.TextToSpeech
func (m *MockTTS) ListVoices(ctx context.Context) ([]entities.Voice, error) {
	return append([]entities.Voice(nil), m.voices...), nil
}
