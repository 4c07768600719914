package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

// ErrAlreadyRecording is returned by Start while a capture is active or being acquired
var ErrAlreadyRecording = errors.New("capture already active")

// recording is one capture attempt; chunks is append-only
type recording struct {
	stream    repositories.AudioStream
	chunks    [][]byte
	startedAt time.Time
	done      chan struct{}
}

// Controller owns the microphone stream and the recording lifecycle.
// At most one recording exists at any time.
type Controller struct {
	mic    repositories.Microphone
	format entities.AudioFormat
	logger *zap.Logger

	mu        sync.Mutex
	acquiring bool
	current   *recording
}

// NewController creates a capture controller for the given microphone
func NewController(mic repositories.Microphone, format entities.AudioFormat, logger *zap.Logger) *Controller {
	return &Controller{
		mic:    mic,
		format: format,
		logger: logger,
	}
}

// Start acquires the microphone and begins collecting fragments.
// It blocks until the stream is granted or acquisition fails.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil || c.acquiring {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if c.mic == nil {
		c.mu.Unlock()
		return domain.Wrap(domain.KindDeviceUnavailable, errors.New("no microphone attached"))
	}
	c.acquiring = true
	c.mu.Unlock()

	stream, err := c.mic.Acquire(ctx, c.format)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = false

	if err != nil {
		c.logger.Warn("Microphone acquisition failed", zap.Error(err))
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			return err
		}
		return domain.Wrap(domain.KindDeviceUnavailable, err)
	}

	rec := &recording{
		stream:    stream,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.current = rec
	go c.collect(rec)

	c.logger.Info("Recording started",
		zap.String("encoding", c.format.Encoding),
		zap.Int("sampleRate", c.format.SampleRate))
	return nil
}

// collect appends fragments in arrival order until the stream terminates
func (c *Controller) collect(rec *recording) {
	defer close(rec.done)
	for fragment := range rec.stream.Fragments() {
		if len(fragment) == 0 {
			continue
		}
		c.mu.Lock()
		rec.chunks = append(rec.chunks, fragment)
		c.mu.Unlock()
	}
}

// Stop releases the stream and finalizes the recording into a single buffer.
// It is a no-op returning false when nothing is being recorded.
func (c *Controller) Stop() (entities.AudioBuffer, bool) {
	c.mu.Lock()
	rec := c.current
	c.current = nil
	c.mu.Unlock()

	if rec == nil {
		return entities.AudioBuffer{}, false
	}

	if err := rec.stream.Close(); err != nil {
		c.logger.Warn("Failed to release microphone stream", zap.Error(err))
	}
	// Fragments delivered before Close are still drained by collect.
	<-rec.done

	c.mu.Lock()
	chunks := rec.chunks
	c.mu.Unlock()

	buffer := entities.AudioBuffer{
		Data:       bytes.Join(chunks, nil),
		Format:     c.format,
		Chunks:     len(chunks),
		StartedAt:  rec.startedAt,
		FinishedAt: time.Now(),
	}

	c.logger.Info("Recording stopped",
		zap.Int("chunks", buffer.Chunks),
		zap.Int("bytes", len(buffer.Data)),
		zap.Duration("duration", buffer.Duration()))

	return buffer, true
}

// Active reports whether a recording is in progress
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
