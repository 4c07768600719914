package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

const fragmentBuffer = 256

var (
	errMicBusy      = errors.New("microphone already in use")
	errGrantTimeout = errors.New("microphone permission timed out")
	errMicDetached  = errors.New("device disconnected")
)

// sender is the outbound half of a device connection
type sender interface {
	SendJSON(v any) error
	SendBinary(payload []byte) error
}

// DeviceMicrophone asks the connected device for its microphone and turns
// binary frames into stream fragments.
type DeviceMicrophone struct {
	out          sender
	grantTimeout time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	pending  *micStream
	active   *micStream
	detached bool
}

var _ repositories.Microphone = (*DeviceMicrophone)(nil)

// NewDeviceMicrophone creates a microphone backed by out
func NewDeviceMicrophone(out sender, grantTimeout time.Duration, logger *zap.Logger) *DeviceMicrophone {
	return &DeviceMicrophone{
		out:          out,
		grantTimeout: grantTimeout,
		logger:       logger,
	}
}

// Acquire sends mic_open and waits for the device to grant or deny it,
// bounded by the grant timeout.
func (m *DeviceMicrophone) Acquire(ctx context.Context, format entities.AudioFormat) (repositories.AudioStream, error) {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return nil, domain.Wrap(domain.KindDeviceUnavailable, errMicDetached)
	}
	if m.pending != nil || m.active != nil {
		m.mu.Unlock()
		return nil, domain.Wrap(domain.KindDeviceUnavailable, errMicBusy)
	}
	stream := newMicStream(m)
	m.pending = stream
	m.mu.Unlock()

	err := m.out.SendJSON(&MicOpenMessage{
		BaseMessage: newBase(MessageTypeMicOpen),
		Encoding:    format.Encoding,
		SampleRate:  format.SampleRate,
		Language:    format.Language,
	})
	if err != nil {
		m.abandon(stream)
		return nil, domain.Wrap(domain.KindDeviceUnavailable, err)
	}

	timer := time.NewTimer(m.grantTimeout)
	defer timer.Stop()

	select {
	case err := <-stream.granted:
		if err != nil {
			return nil, domain.Wrap(domain.KindDeviceUnavailable, err)
		}
		m.logger.Info("Microphone granted")
		return stream, nil
	case <-timer.C:
		err = errGrantTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	if m.abandon(stream) {
		_ = m.out.SendJSON(NewSignal(MessageTypeMicClose))
		return nil, domain.Wrap(domain.KindDeviceUnavailable, err)
	}
	// The grant raced the timeout; release the stream that was just granted.
	if grantErr := <-stream.granted; grantErr == nil {
		stream.Close()
	}
	return nil, domain.Wrap(domain.KindDeviceUnavailable, err)
}

// abandon drops a pending stream; false when it was already resolved
func (m *DeviceMicrophone) abandon(stream *micStream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != stream {
		return false
	}
	m.pending = nil
	return true
}

// HandleGranted resolves a pending acquisition
func (m *DeviceMicrophone) HandleGranted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.pending
	if stream == nil {
		m.logger.Warn("Unexpected mic_granted, no acquisition pending")
		return
	}
	m.pending = nil
	m.active = stream
	stream.granted <- nil
}

// HandleDenied fails a pending acquisition
func (m *DeviceMicrophone) HandleDenied(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.pending
	if stream == nil {
		return
	}
	m.pending = nil
	if reason == "" {
		reason = "permission denied"
	}
	stream.granted <- fmt.Errorf("microphone denied: %s", reason)
}

// HandleFragment forwards a binary frame to the active stream
func (m *DeviceMicrophone) HandleFragment(fragment []byte) {
	m.mu.Lock()
	stream := m.active
	m.mu.Unlock()

	if stream == nil {
		m.logger.Debug("Dropping audio frame, microphone not open", zap.Int("size", len(fragment)))
		return
	}
	if !stream.push(fragment) {
		m.logger.Warn("Dropping audio frame, capture is not keeping up", zap.Int("size", len(fragment)))
	}
}

// HandleClosed terminates the active stream after the device stopped capturing
func (m *DeviceMicrophone) HandleClosed() {
	m.mu.Lock()
	stream := m.active
	m.active = nil
	m.mu.Unlock()

	if stream != nil {
		stream.terminate()
		m.logger.Info("Microphone closed by device")
	}
}

// Detach fails any pending acquisition and ends the active stream. Used
// when the connection goes away.
func (m *DeviceMicrophone) Detach() {
	m.mu.Lock()
	m.detached = true
	pending, active := m.pending, m.active
	m.pending, m.active = nil, nil
	m.mu.Unlock()

	if pending != nil {
		pending.granted <- errMicDetached
	}
	if active != nil {
		active.terminate()
	}
}

// release is called by micStream.Close
func (m *DeviceMicrophone) release(stream *micStream) {
	m.mu.Lock()
	wasActive := m.active == stream
	if wasActive {
		m.active = nil
	}
	m.mu.Unlock()

	if wasActive {
		if err := m.out.SendJSON(NewSignal(MessageTypeMicClose)); err != nil {
			m.logger.Debug("Failed to send mic_close", zap.Error(err))
		}
	}
}

// micStream is one granted microphone session
type micStream struct {
	mic       *DeviceMicrophone
	granted   chan error
	fragments chan []byte

	mu     sync.Mutex
	closed bool
}

func newMicStream(mic *DeviceMicrophone) *micStream {
	return &micStream{
		mic:       mic,
		granted:   make(chan error, 1),
		fragments: make(chan []byte, fragmentBuffer),
	}
}

func (s *micStream) Fragments() <-chan []byte {
	return s.fragments
}

// Close asks the device to stop capturing and ends the fragment channel
func (s *micStream) Close() error {
	s.mic.release(s)
	s.terminate()
	return nil
}

func (s *micStream) push(fragment []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.fragments <- fragment:
		return true
	default:
		return false
	}
}

func (s *micStream) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.fragments)
	}
}
