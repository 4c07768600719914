package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
	"github.com/satriahrh/tutur/internal/capture"
	"github.com/satriahrh/tutur/internal/playback"
)

var (
	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionReset is returned by StartRecording when a disconnect
	// superseded the recording request or its pending microphone acquisition
	ErrSessionReset = errors.New("session reset while acquiring microphone")
)

const subscriberBuffer = 32

// Recorder owns the microphone stream and recording lifecycle
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (entities.AudioBuffer, bool)
	Active() bool
}

// Speaker plays one utterance at a time
type Speaker interface {
	Speak(text string, voice *entities.Voice, listener playback.Listener) error
	Pause() bool
	Resume() bool
	Cancel()
}

// VoiceCatalog lists voices and tracks the selection
type VoiceCatalog interface {
	Refresh(all []entities.Voice) []entities.Voice
	Select(name string) error
	ResetSelection()
	Selected() (entities.Voice, bool)
	List() []entities.Voice
	Available() (entities.Voice, bool)
}

// SessionOrchestrator sequences capture, transcription, completion and playback
// for one session. Every mutation goes through transitionLocked, which publishes
// a snapshot to subscribers.
type SessionOrchestrator struct {
	recorder       Recorder
	speechToText   repositories.SpeechToText
	llm            repositories.LargeLanguageModel
	speaker        Speaker
	catalog        VoiceCatalog
	requestTimeout time.Duration
	logger         *zap.Logger

	mu             sync.Mutex
	state          entities.SessionState
	acquiring      bool
	acquireCancel  context.CancelFunc
	pipelineCancel context.CancelFunc
	subscribers    map[int]chan entities.SessionState
	nextSubscriber int
	closed         bool
}

// NewSessionOrchestrator creates an idle session
func NewSessionOrchestrator(
	sessionID string,
	recorder Recorder,
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	speaker Speaker,
	catalog VoiceCatalog,
	requestTimeout time.Duration,
	logger *zap.Logger,
) *SessionOrchestrator {
	o := &SessionOrchestrator{
		recorder:       recorder,
		speechToText:   stt,
		llm:            llm,
		speaker:        speaker,
		catalog:        catalog,
		requestTimeout: requestTimeout,
		logger:         logger.With(zap.String("sessionID", sessionID)),
		state:          entities.NewSessionState(sessionID),
		subscribers:    make(map[int]chan entities.SessionState),
	}
	if v, ok := catalog.Selected(); ok {
		o.state.SelectedVoice = v.Name
	}
	return o
}

// StartRecording cancels any utterance and in-flight pipeline, then acquires the
// microphone. The phase stays Idle until the microphone is granted.
func (o *SessionOrchestrator) StartRecording(ctx context.Context) error {
	return o.startRecording(ctx, false, 0)
}

// StartRecordingSince is StartRecording for a request made when the current
// request id was requestID. It fails with ErrSessionReset when a newer request,
// such as a disconnect, was made in the meantime.
func (o *SessionOrchestrator) StartRecordingSince(ctx context.Context, requestID uint64) error {
	return o.startRecording(ctx, true, requestID)
}

func (o *SessionOrchestrator) startRecording(ctx context.Context, checkSince bool, since uint64) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	if checkSince && o.state.RequestID != since {
		o.mu.Unlock()
		o.logger.Info("Recording request superseded before it started", zap.Uint64("requestID", since))
		return ErrSessionReset
	}
	if o.state.Phase == entities.PhaseRecording || o.acquiring {
		o.mu.Unlock()
		return capture.ErrAlreadyRecording
	}

	o.cancelPipelineLocked()
	o.speaker.Cancel()

	id := o.state.RequestID + 1
	acquireCtx, cancel := context.WithCancel(ctx)
	o.acquiring = true
	o.acquireCancel = cancel
	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseIdle
		s.RequestID = id
		s.ResponseText = ""
	})
	o.mu.Unlock()

	o.logger.Info("Acquiring microphone", zap.Uint64("requestID", id))
	err := o.recorder.Start(acquireCtx)
	cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.acquiring = false
	o.acquireCancel = nil

	if o.state.RequestID != id {
		if err == nil {
			o.recorder.Stop()
		}
		o.logger.Info("Microphone acquisition superseded", zap.Uint64("requestID", id))
		return ErrSessionReset
	}

	if err != nil {
		o.logger.Warn("Recording could not start", zap.Uint64("requestID", id), zap.Error(err))
		o.transitionLocked(func(s *entities.SessionState) {
			s.Phase = entities.PhaseIdle
			s.LastError = domain.NewError(domain.KindOf(err, domain.KindDeviceUnavailable), err)
		})
		return err
	}

	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseRecording
		s.LastError = nil
	})
	return nil
}

// StopRecording finalizes the recording and starts transcription.
// It is a no-op when not recording.
func (o *SessionOrchestrator) StopRecording() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrSessionClosed
	}
	if o.state.Phase != entities.PhaseRecording {
		return nil
	}

	buffer, _ := o.recorder.Stop()

	id := o.state.RequestID + 1
	ctx, cancel := o.pipelineContext()
	o.pipelineCancel = cancel
	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseTranscribing
		s.RequestID = id
	})

	go o.runPipeline(ctx, id, buffer)
	return nil
}

// ToggleRecording stops an active recording or starts a new one
func (o *SessionOrchestrator) ToggleRecording(ctx context.Context) error {
	if o.State().Phase == entities.PhaseRecording {
		return o.StopRecording()
	}
	return o.StartRecording(ctx)
}

func (o *SessionOrchestrator) pipelineContext() (context.Context, context.CancelFunc) {
	if o.requestTimeout > 0 {
		return context.WithTimeout(context.Background(), o.requestTimeout)
	}
	return context.WithCancel(context.Background())
}

func (o *SessionOrchestrator) runPipeline(ctx context.Context, id uint64, buffer entities.AudioBuffer) {
	logger := o.logger.With(zap.Uint64("requestID", id))

	if buffer.Empty() {
		logger.Info("Recording was empty, nothing to transcribe")
		o.endPipeline(id, nil)
		return
	}

	transcript, err := o.speechToText.Transcribe(ctx, buffer)
	if !o.isCurrent(id) {
		logger.Debug("Discarding stale transcription")
		return
	}
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		o.endPipeline(id, domain.NewError(domain.KindTranscriptionFailed, err))
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Info("Transcript is empty, skipping completion")
		o.endPipeline(id, nil)
		return
	}
	logger.Info("Transcription completed", zap.String("text", transcript))

	if !o.advance(id, entities.PhaseCompleting) {
		return
	}

	response, err := o.llm.Complete(ctx, transcript)
	if !o.isCurrent(id) {
		logger.Debug("Discarding stale completion")
		return
	}
	if err != nil {
		logger.Error("Completion failed", zap.Error(err))
		o.endPipeline(id, domain.NewError(domain.KindCompletionFailed, err))
		return
	}
	logger.Info("Completion received", zap.Int("responseLength", len(response)))

	o.speak(id, response)
}

// speak hands the response to the speaker if the pipeline is still current
func (o *SessionOrchestrator) speak(id uint64, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.RequestID != id || o.state.Phase != entities.PhaseCompleting {
		return
	}
	o.cancelPipelineLocked()

	v, ok := o.catalog.Available()
	if !ok {
		o.logger.Warn("No voice available, response will not be spoken", zap.Uint64("requestID", id))
		o.transitionLocked(func(s *entities.SessionState) {
			s.Phase = entities.PhaseIdle
			s.LastError = domain.NewError(domain.KindNoVoiceAvailable, domain.ErrNoVoiceAvailable)
			s.ResponseText = text
		})
		return
	}

	listener := func(ev playback.Event) { o.onPlayback(id, ev) }
	if err := o.speaker.Speak(text, &v, listener); err != nil {
		o.logger.Error("Playback could not start", zap.Uint64("requestID", id), zap.Error(err))
		o.transitionLocked(func(s *entities.SessionState) {
			s.Phase = entities.PhaseIdle
			s.LastError = domain.NewError(domain.KindOf(err, domain.KindSynthesisFailed), err)
			s.ResponseText = text
		})
		return
	}

	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseSpeaking
		s.ResponseText = text
	})
}

func (o *SessionOrchestrator) onPlayback(id uint64, ev playback.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.RequestID != id || !o.state.Phase.IsSpeaking() {
		return
	}

	switch ev {
	case playback.EventStart:
		o.logger.Debug("Playback started", zap.Uint64("requestID", id))
	case playback.EventEnd:
		o.transitionLocked(func(s *entities.SessionState) {
			s.Phase = entities.PhaseIdle
			s.ResponseText = ""
		})
	case playback.EventError:
		o.transitionLocked(func(s *entities.SessionState) {
			s.Phase = entities.PhaseIdle
			s.LastError = domain.NewError(domain.KindSynthesisFailed, domain.ErrSynthesisFailed)
		})
	}
}

// Pause suspends playback; no-op unless speaking
func (o *SessionOrchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase != entities.PhaseSpeaking {
		return
	}
	if o.speaker.Pause() {
		o.transitionLocked(func(s *entities.SessionState) { s.Phase = entities.PhasePaused })
	}
}

// Resume continues playback; no-op unless paused
func (o *SessionOrchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase != entities.PhasePaused {
		return
	}
	o.speaker.Resume()
	o.transitionLocked(func(s *entities.SessionState) { s.Phase = entities.PhaseSpeaking })
}

// TogglePause switches between Speaking and Paused
func (o *SessionOrchestrator) TogglePause() {
	switch o.State().Phase {
	case entities.PhaseSpeaking:
		o.Pause()
	case entities.PhasePaused:
		o.Resume()
	}
}

// Disconnect resets the session from any state. It always succeeds.
func (o *SessionOrchestrator) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.resetLocked()
	o.logger.Info("Session disconnected", zap.Uint64("requestID", o.state.RequestID))
}

func (o *SessionOrchestrator) resetLocked() {
	if o.acquireCancel != nil {
		o.acquireCancel()
	}
	o.cancelPipelineLocked()
	o.recorder.Stop()
	o.speaker.Cancel()
	o.catalog.ResetSelection()

	id := o.state.RequestID + 1
	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseIdle
		s.RequestID = id
		s.LastError = nil
		s.ResponseText = ""
	})
}

// SelectVoice makes name the explicit voice selection
func (o *SessionOrchestrator) SelectVoice(name string) error {
	if err := o.catalog.Select(name); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitionLocked(func(*entities.SessionState) {})
	return nil
}

// RefreshVoices replaces the voice catalog with the provider's current list
func (o *SessionOrchestrator) RefreshVoices(all []entities.Voice) []entities.Voice {
	listed := o.catalog.Refresh(all)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitionLocked(func(*entities.SessionState) {})
	return listed
}

// Voices returns the listed voices
func (o *SessionOrchestrator) Voices() []entities.Voice {
	return o.catalog.List()
}

// State returns the current snapshot
func (o *SessionOrchestrator) State() entities.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Subscribe delivers the current snapshot followed by one snapshot per transition.
// When a subscriber falls behind, the oldest pending snapshot is dropped.
func (o *SessionOrchestrator) Subscribe() (<-chan entities.SessionState, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan entities.SessionState, subscriberBuffer)
	if o.closed {
		close(ch)
		return ch, func() {}
	}

	key := o.nextSubscriber
	o.nextSubscriber++
	o.subscribers[key] = ch
	ch <- o.state.Clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subscribers[key]; ok {
				delete(o.subscribers, key)
				close(sub)
			}
		})
	}
}

// Close resets the session and closes every subscription
func (o *SessionOrchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.resetLocked()
	o.closed = true
	for key, ch := range o.subscribers {
		delete(o.subscribers, key)
		close(ch)
	}
	o.logger.Info("Session closed")
}

func (o *SessionOrchestrator) isCurrent(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.RequestID == id
}

// advance moves a current pipeline to the next processing phase
func (o *SessionOrchestrator) advance(id uint64, phase entities.Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.RequestID != id {
		return false
	}
	o.transitionLocked(func(s *entities.SessionState) { s.Phase = phase })
	return true
}

// endPipeline returns a current pipeline to Idle, recording failure if any
func (o *SessionOrchestrator) endPipeline(id uint64, failure *domain.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.RequestID != id {
		return
	}
	o.cancelPipelineLocked()
	o.transitionLocked(func(s *entities.SessionState) {
		s.Phase = entities.PhaseIdle
		s.LastError = failure
		s.ResponseText = ""
	})
}

func (o *SessionOrchestrator) cancelPipelineLocked() {
	if o.pipelineCancel != nil {
		o.pipelineCancel()
		o.pipelineCancel = nil
	}
}

func (o *SessionOrchestrator) transitionLocked(mutate func(*entities.SessionState)) {
	from := o.state.Phase
	mutate(&o.state)
	if v, ok := o.catalog.Selected(); ok {
		o.state.SelectedVoice = v.Name
	} else {
		o.state.SelectedVoice = ""
	}
	o.state.UpdatedAt = time.Now()

	if from != o.state.Phase {
		o.logger.Info("Phase changed",
			zap.String("from", string(from)),
			zap.String("to", string(o.state.Phase)),
			zap.Uint64("requestID", o.state.RequestID))
	}
	o.publishLocked(o.state.Clone())
}

func (o *SessionOrchestrator) publishLocked(snapshot entities.SessionState) {
	for _, ch := range o.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		o.logger.Warn("State subscriber is slow, dropping oldest snapshot")
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
