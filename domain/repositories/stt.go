package repositories

import (
	"context"

	"github.com/satriahrh/tutur/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts a finalized recording to text. Single shot, no retry.
	Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error)
}
