package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
	"github.com/satriahrh/tutur/internal/capture"
	"github.com/satriahrh/tutur/internal/playback"
	"github.com/satriahrh/tutur/internal/voice"
	"github.com/satriahrh/tutur/usecase"
)

// SessionDeps are the providers and settings shared by every device session
type SessionDeps struct {
	SpeechToText repositories.SpeechToText
	LLM          repositories.LargeLanguageModel
	TextToSpeech repositories.TextToSpeech

	Locales              []string
	VoiceParams          entities.VoiceParams
	AudioFormat          entities.AudioFormat
	MicGrantTimeout      time.Duration
	RequestTimeout       time.Duration
	VoiceRefreshInterval time.Duration
}

// Session binds one device connection to its orchestrator
type Session struct {
	id           string
	out          sender
	mic          *DeviceMicrophone
	sink         *DeviceSink
	orchestrator *usecase.SessionOrchestrator
	refresher    *VoiceRefresher
	logger       *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	forwarded chan struct{}
	closeOnce sync.Once
}

func newSession(out sender, deps SessionDeps, logger *zap.Logger) *Session {
	id := uuid.NewString()
	logger = logger.With(zap.String("sessionID", id))

	mic := NewDeviceMicrophone(out, deps.MicGrantTimeout, logger)
	sink := NewDeviceSink(out, logger)
	catalog := voice.NewCatalog(deps.Locales, logger)

	s := &Session{
		id:        id,
		out:       out,
		mic:       mic,
		sink:      sink,
		logger:    logger,
		forwarded: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.orchestrator = usecase.NewSessionOrchestrator(
		id,
		capture.NewController(mic, deps.AudioFormat, logger),
		deps.SpeechToText,
		deps.LLM,
		playback.NewController(deps.TextToSpeech, sink, deps.VoiceParams, logger),
		catalog,
		deps.RequestTimeout,
		logger,
	)
	s.refresher = NewVoiceRefresher(deps.TextToSpeech, deps.VoiceRefreshInterval, s.refreshVoices, logger)
	return s
}

// Start forwards state snapshots to the device and begins listing voices
func (s *Session) Start() {
	go s.forwardState()
	s.refresher.Start()
	s.logger.Info("Session started")
}

// forwardState sends every snapshot as a state message, plus an error
// message whenever a new failure is recorded.
func (s *Session) forwardState() {
	defer close(s.forwarded)

	updates, unsubscribe := s.orchestrator.Subscribe()
	defer unsubscribe()

	var reported *domain.Error
	var reportedRequest uint64
	for state := range updates {
		if err := s.out.SendJSON(NewStateMessage(state)); err != nil {
			s.logger.Debug("Failed to send state", zap.Error(err))
			continue
		}

		failure := state.LastError
		if failure == nil {
			reported = nil
			continue
		}
		if reported != nil && reportedRequest == state.RequestID && *reported == *failure {
			continue
		}
		reported, reportedRequest = failure, state.RequestID
		if err := s.out.SendJSON(NewPipelineErrorMessage(failure)); err != nil {
			s.logger.Debug("Failed to send error", zap.Error(err))
		}
	}
}

func (s *Session) refreshVoices(all []entities.Voice) {
	listed := s.orchestrator.RefreshVoices(all)
	s.logger.Info("Voices refreshed", zap.Int("listed", len(listed)))
	s.sendVoices(listed)
}

func (s *Session) sendVoices(voices []entities.Voice) {
	selected := s.orchestrator.State().SelectedVoice
	if err := s.out.SendJSON(NewVoicesMessage(voices, selected)); err != nil {
		s.logger.Debug("Failed to send voices", zap.Error(err))
	}
}

// HandleMessage dispatches a device control message
func (s *Session) HandleMessage(msg InboundMessage) {
	switch msg.Type {
	case MessageTypeRecordStart:
		s.startRecording()
	case MessageTypeRecordToggle:
		if s.orchestrator.State().Phase == entities.PhaseRecording {
			s.stopRecording()
		} else {
			s.startRecording()
		}
	case MessageTypeRecordStop:
		s.stopRecording()
	case MessageTypePause:
		s.orchestrator.Pause()
	case MessageTypeResume:
		s.orchestrator.Resume()
	case MessageTypePauseToggle:
		s.orchestrator.TogglePause()
	case MessageTypeDisconnect:
		s.orchestrator.Disconnect()
		s.sendVoices(s.orchestrator.Voices())
		if err := s.out.SendJSON(NewSignal(MessageTypeDisconnected)); err != nil {
			s.logger.Debug("Failed to send disconnected", zap.Error(err))
		}
	case MessageTypeSelectVoice:
		if err := s.orchestrator.SelectVoice(msg.Voice); err != nil {
			code := ErrorCodeInvalidMessage
			if errors.Is(err, voice.ErrVoiceNotFound) {
				code = ErrorCodeVoiceNotFound
			}
			_ = s.out.SendJSON(CreateErrorMessage(code, err.Error()))
			return
		}
		s.sendVoices(s.orchestrator.Voices())
	case MessageTypeMicGranted:
		s.mic.HandleGranted()
	case MessageTypeMicDenied:
		s.mic.HandleDenied(msg.Reason)
	case MessageTypeMicClosed:
		s.mic.HandleClosed()
	case MessageTypePlaybackEnded:
		s.sink.HandlePlaybackEnded(msg.UtteranceID)
	case MessageTypePing:
		_ = s.out.SendJSON(NewSignal(MessageTypePong))
	}
}

// HandleAudio forwards a microphone frame
func (s *Session) HandleAudio(fragment []byte) {
	s.mic.HandleFragment(fragment)
}

// startRecording acquires the microphone in the background, since the grant
// arrives on the read pump. The request id is read in message order, so a
// disconnect handled before the acquisition runs supersedes it.
func (s *Session) startRecording() {
	requestID := s.orchestrator.State().RequestID
	go s.record(func(ctx context.Context) error {
		return s.orchestrator.StartRecordingSince(ctx, requestID)
	})
}

func (s *Session) stopRecording() {
	if err := s.orchestrator.StopRecording(); err != nil {
		s.logger.Debug("Stop recording rejected", zap.Error(err))
	}
}

func (s *Session) record(start func(context.Context) error) {
	err := start(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDeviceUnavailable):
		s.logger.Info("Recording could not start", zap.Error(err))
	default:
		s.logger.Debug("Recording request ignored", zap.Error(err))
	}
}

// State returns the current session snapshot
func (s *Session) State() entities.SessionState {
	return s.orchestrator.State()
}

// Close resets the session and releases the device microphone. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.refresher.Stop()
		s.orchestrator.Close()
		s.mic.Detach()
		<-s.forwarded
		s.logger.Info("Session ended")
	})
}
