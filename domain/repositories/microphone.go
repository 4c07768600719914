package repositories

import (
	"context"

	"github.com/satriahrh/tutur/domain/entities"
)

// Microphone acquires an exclusive audio input stream
type Microphone interface {
	// Acquire blocks until the stream is granted, denied or ctx is done.
	Acquire(ctx context.Context, format entities.AudioFormat) (AudioStream, error)
}

// AudioStream delivers audio fragments in arrival order
type AudioStream interface {
	// Fragments is closed when the stream terminates.
	Fragments() <-chan []byte
	// Close releases the stream; Fragments is closed once buffered
	// fragments have been read.
	Close() error
}
