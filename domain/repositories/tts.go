package repositories

import (
	"context"

	"github.com/satriahrh/tutur/domain/entities"
)

// TextToSpeech abstracts speech synthesis providers
type TextToSpeech interface {
	// Synthesize streams audio for text. The audio channel is closed when synthesis
	// is done; at most one error is delivered on the error channel before it closes.
	Synthesize(ctx context.Context, text string, voice entities.Voice, params entities.VoiceParams) (<-chan []byte, <-chan error)
	// ListVoices returns every voice the provider offers, unfiltered.
	ListVoices(ctx context.Context) ([]entities.Voice, error)
}
