package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/repositories"
)

// defaultPlayoutTimeout bounds the wait for a device's playback_ended
const defaultPlayoutTimeout = 2 * time.Minute

// DeviceSink streams synthesized audio to the device as binary frames,
// framed by speaking_start and speaking_end. The device buffers the audio
// and reports playback_ended once it has played it all.
type DeviceSink struct {
	out            sender
	playoutTimeout time.Duration
	logger         *zap.Logger

	// mu is held while sending so control frames keep their order
	// relative to audio frames.
	mu     sync.Mutex
	active string
	paused bool

	// playing is closed when the device finishes the flushed active utterance
	playing      chan struct{}
	playoutTimer *time.Timer
}

var _ repositories.AudioSink = (*DeviceSink)(nil)

// NewDeviceSink creates a sink writing to out
func NewDeviceSink(out sender, logger *zap.Logger) *DeviceSink {
	return &DeviceSink{out: out, playoutTimeout: defaultPlayoutTimeout, logger: logger}
}

// Begin implements repositories.AudioSink
func (s *DeviceSink) Begin(utteranceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearPlayoutLocked()
	s.active = utteranceID
	return s.out.SendJSON(NewPlaybackMessage(MessageTypeSpeakingStart, utteranceID))
}

// WriteAudio implements repositories.AudioSink
func (s *DeviceSink) WriteAudio(utteranceID string, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if utteranceID != s.active || s.playing != nil {
		s.logger.Debug("Dropping audio of inactive utterance", zap.String("utteranceID", utteranceID))
		return nil
	}
	return s.out.SendBinary(chunk)
}

// SetPaused implements repositories.AudioSink
func (s *DeviceSink) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused == paused {
		return
	}
	s.paused = paused

	msgType := MessageTypePlaybackResume
	if paused {
		msgType = MessageTypePlaybackPause
	}
	if err := s.out.SendJSON(NewPlaybackMessage(msgType, s.active)); err != nil {
		s.logger.Debug("Failed to send playback control", zap.String("type", string(msgType)), zap.Error(err))
	}
}

// Flush implements repositories.AudioSink. The returned channel is closed
// when the device reports playback_ended, or after the playout timeout.
func (s *DeviceSink) Flush(utteranceID string) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if utteranceID != s.active || s.playing != nil {
		// A reset utterance never plays out.
		return make(chan struct{}), nil
	}
	if err := s.out.SendJSON(NewPlaybackMessage(MessageTypeSpeakingEnd, utteranceID)); err != nil {
		return nil, err
	}

	playing := make(chan struct{})
	s.playing = playing
	s.playoutTimer = time.AfterFunc(s.playoutTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.playing != playing {
			return
		}
		s.logger.Warn("Device did not report the end of playback",
			zap.String("utteranceID", utteranceID),
			zap.Duration("timeout", s.playoutTimeout))
		s.endPlayoutLocked()
	})
	return playing, nil
}

// HandlePlaybackEnded records the device's report that it played the whole utterance
func (s *DeviceSink) HandlePlaybackEnded(utteranceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing == nil || utteranceID != s.active {
		s.logger.Debug("Ignoring playback end of inactive utterance", zap.String("utteranceID", utteranceID))
		return
	}
	s.endPlayoutLocked()
}

func (s *DeviceSink) endPlayoutLocked() {
	close(s.playing)
	s.clearPlayoutLocked()
	s.active = ""
	s.paused = false
}

// clearPlayoutLocked forgets a pending playout without reporting its end
func (s *DeviceSink) clearPlayoutLocked() {
	if s.playoutTimer != nil {
		s.playoutTimer.Stop()
		s.playoutTimer = nil
	}
	s.playing = nil
}

// Reset implements repositories.AudioSink
func (s *DeviceSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	utteranceID := s.active
	s.clearPlayoutLocked()
	s.active = ""
	s.paused = false
	if err := s.out.SendJSON(NewPlaybackMessage(MessageTypePlaybackReset, utteranceID)); err != nil {
		s.logger.Debug("Failed to send playback reset", zap.Error(err))
	}
}
