package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/internal/capture"
	"github.com/satriahrh/tutur/internal/playback"
	"github.com/satriahrh/tutur/internal/voice"
)

const waitFor = time.Second

type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeRecorder struct {
	log   *callLog
	mu    sync.Mutex
	grant chan struct{}
	err   error
	data  []byte

	active    int
	maxActive int
}

func (r *fakeRecorder) Start(ctx context.Context) error {
	r.log.add("recorder:start")
	r.mu.Lock()
	grant, err := r.grant, r.err
	r.mu.Unlock()

	if grant != nil {
		select {
		case <-grant:
		case <-ctx.Done():
			return domain.Wrap(domain.KindDeviceUnavailable, ctx.Err())
		}
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	return nil
}

func (r *fakeRecorder) Stop() (entities.AudioBuffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == 0 {
		return entities.AudioBuffer{}, false
	}
	r.active--
	r.log.add("recorder:stop")
	return entities.AudioBuffer{Data: r.data, Chunks: 1}, true
}

func (r *fakeRecorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active > 0
}

type textResult struct {
	text string
	err  error
}

// fakeText serves both transcription and completion. When results is set,
// each call blocks until the test sends a result.
type fakeText struct {
	mu      sync.Mutex
	calls   []string
	ctxs    []context.Context
	text    string
	err     error
	results chan textResult
}

func (f *fakeText) call(ctx context.Context, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.ctxs = append(f.ctxs, ctx)
	results := f.results
	f.mu.Unlock()

	if results != nil {
		r := <-results
		return r.text, r.err
	}
	return f.text, f.err
}

func (f *fakeText) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeText) lastContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxs[len(f.ctxs)-1]
}

type fakeSTT struct{ fakeText }

func (f *fakeSTT) Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error) {
	return f.call(ctx, string(audio.Data))
}

type fakeLLM struct{ fakeText }

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.call(ctx, prompt)
}

type spoken struct {
	text     string
	voice    entities.Voice
	listener playback.Listener
}

type fakeSpeaker struct {
	log *callLog
	mu  sync.Mutex
	err error

	utterances []spoken
	current    bool
	paused     bool
}

func (s *fakeSpeaker) Speak(text string, v *entities.Voice, listener playback.Listener) error {
	s.log.add("speaker:speak")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.utterances = append(s.utterances, spoken{text: text, voice: *v, listener: listener})
	s.current = true
	s.paused = false
	return nil
}

func (s *fakeSpeaker) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current || s.paused {
		return false
	}
	s.paused = true
	return true
}

func (s *fakeSpeaker) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current || !s.paused {
		return false
	}
	s.paused = false
	return true
}

func (s *fakeSpeaker) Cancel() {
	s.log.add("speaker:cancel")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = false
	s.paused = false
}

func (s *fakeSpeaker) last() spoken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.utterances[len(s.utterances)-1]
}

func (s *fakeSpeaker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.utterances)
}

type harness struct {
	o        *SessionOrchestrator
	log      *callLog
	recorder *fakeRecorder
	stt      *fakeSTT
	llm      *fakeLLM
	speaker  *fakeSpeaker
	catalog  *voice.Catalog
}

var spanishVoices = []entities.Voice{
	{ID: "v1", Name: "Lucia", Locale: "es-ES"},
	{ID: "v2", Name: "Jorge", Locale: "es-MX"},
	{ID: "v3", Name: "Emma", Locale: "en-US"},
}

func newHarness(t *testing.T, voices []entities.Voice) *harness {
	logger := zaptest.NewLogger(t)
	log := &callLog{}
	h := &harness{
		log:      log,
		recorder: &fakeRecorder{log: log, data: []byte("audio")},
		stt:      &fakeSTT{fakeText{text: "hello"}},
		llm:      &fakeLLM{fakeText{text: "hi there"}},
		speaker:  &fakeSpeaker{log: log},
		catalog:  voice.NewCatalog([]string{"es-ES", "es-MX"}, logger),
	}
	h.catalog.Refresh(voices)
	h.o = NewSessionOrchestrator("session-1", h.recorder, h.stt, h.llm, h.speaker, h.catalog, time.Minute, logger)
	t.Cleanup(h.o.Close)
	return h
}

func (h *harness) waitPhase(t *testing.T, phase entities.Phase) entities.SessionState {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.o.State().Phase == phase
	}, waitFor, 5*time.Millisecond, "phase never became %s", phase)
	return h.o.State()
}

// speakResponse drives a full cycle up to Speaking
func (h *harness) speakResponse(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())
	h.waitPhase(t, entities.PhaseSpeaking)
}

func drainPhases(ch <-chan entities.SessionState) []entities.Phase {
	var phases []entities.Phase
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return phases
			}
			if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
				phases = append(phases, s.Phase)
			}
		default:
			return phases
		}
	}
}

func TestSessionOrchestrator_FullCycle(t *testing.T) {
	h := newHarness(t, spanishVoices)
	updates, unsubscribe := h.o.Subscribe()
	defer unsubscribe()

	h.speakResponse(t)

	assert.Equal(t, []string{"audio"}, h.stt.calls)
	assert.Equal(t, []string{"hello"}, h.llm.calls)
	u := h.speaker.last()
	assert.Equal(t, "hi there", u.text)
	assert.Equal(t, "Lucia", u.voice.Name)
	assert.Equal(t, "hi there", h.o.State().ResponseText)

	u.listener(playback.EventStart)
	u.listener(playback.EventEnd)
	state := h.waitPhase(t, entities.PhaseIdle)
	assert.Nil(t, state.LastError)
	assert.Empty(t, state.ResponseText)

	assert.Equal(t, []entities.Phase{
		entities.PhaseIdle,
		entities.PhaseRecording,
		entities.PhaseTranscribing,
		entities.PhaseCompleting,
		entities.PhaseSpeaking,
		entities.PhaseIdle,
	}, drainPhases(updates))
}

func TestSessionOrchestrator_TranscriptionFailure(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.stt.text = ""
	h.stt.err = domain.Wrap(domain.KindTranscriptionFailed, errors.New("500 Internal Server Error"))

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())

	require.Eventually(t, func() bool {
		return h.o.State().LastError != nil
	}, waitFor, 5*time.Millisecond)
	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Equal(t, domain.KindTranscriptionFailed, state.LastError.Kind)
	assert.Contains(t, state.LastError.Message, "500")
	assert.Zero(t, h.llm.count())
	assert.Zero(t, h.speaker.count())
}

func TestSessionOrchestrator_WhitespaceTranscriptSkipsCompletion(t *testing.T) {
	for _, transcript := range []string{"", "   ", "\n\t "} {
		h := newHarness(t, spanishVoices)
		h.stt.text = transcript

		require.NoError(t, h.o.StartRecording(context.Background()))
		require.NoError(t, h.o.StopRecording())

		require.Eventually(t, func() bool { return h.stt.count() == 1 }, waitFor, 5*time.Millisecond)
		state := h.waitPhase(t, entities.PhaseIdle)
		assert.Nil(t, state.LastError)
		assert.Never(t, func() bool { return h.llm.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	}
}

func TestSessionOrchestrator_EmptyRecordingSkipsTranscription(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.recorder.data = nil

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())

	state := h.waitPhase(t, entities.PhaseIdle)
	assert.Nil(t, state.LastError)
	assert.Zero(t, h.stt.count())
}

func TestSessionOrchestrator_CompletionFailure(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.llm.text = ""
	h.llm.err = domain.Wrap(domain.KindCompletionFailed, errors.New("429 - rate limit reached"))

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())

	require.Eventually(t, func() bool {
		return h.o.State().LastError != nil
	}, waitFor, 5*time.Millisecond)
	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Equal(t, domain.KindCompletionFailed, state.LastError.Kind)
	assert.Contains(t, state.LastError.Message, "rate limit reached")
	assert.Zero(t, h.speaker.count())
}

func TestSessionOrchestrator_NoVoiceAvailable(t *testing.T) {
	h := newHarness(t, []entities.Voice{{ID: "en", Name: "Emma", Locale: "en-US"}})

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())

	require.Eventually(t, func() bool {
		return h.o.State().LastError != nil
	}, waitFor, 5*time.Millisecond)
	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Equal(t, domain.KindNoVoiceAvailable, state.LastError.Kind)
	assert.Equal(t, "hi there", state.ResponseText)
	assert.Zero(t, h.speaker.count())
}

func TestSessionOrchestrator_SynthesisFailure(t *testing.T) {
	t.Run("speak rejected", func(t *testing.T) {
		h := newHarness(t, spanishVoices)
		h.speaker.err = domain.Wrap(domain.KindSynthesisFailed, errors.New("no speech engine available"))

		require.NoError(t, h.o.StartRecording(context.Background()))
		require.NoError(t, h.o.StopRecording())

		require.Eventually(t, func() bool {
			return h.o.State().LastError != nil
		}, waitFor, 5*time.Millisecond)
		state := h.o.State()
		assert.Equal(t, entities.PhaseIdle, state.Phase)
		assert.Equal(t, domain.KindSynthesisFailed, state.LastError.Kind)
	})

	t.Run("playback error event", func(t *testing.T) {
		h := newHarness(t, spanishVoices)
		h.speakResponse(t)

		h.speaker.last().listener(playback.EventError)

		state := h.o.State()
		assert.Equal(t, entities.PhaseIdle, state.Phase)
		require.NotNil(t, state.LastError)
		assert.Equal(t, domain.KindSynthesisFailed, state.LastError.Kind)
	})
}

func TestSessionOrchestrator_StopWhenNotRecordingIsNoop(t *testing.T) {
	h := newHarness(t, spanishVoices)
	before := h.o.State()

	require.NoError(t, h.o.StopRecording())

	after := h.o.State()
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.RequestID, after.RequestID)
	assert.Zero(t, h.stt.count())
}

func TestSessionOrchestrator_AtMostOneRecording(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.recorder.grant = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- h.o.StartRecording(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(h.log.snapshot()) >= 2
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, entities.PhaseIdle, h.o.State().Phase)

	assert.ErrorIs(t, h.o.StartRecording(context.Background()), capture.ErrAlreadyRecording)

	close(h.recorder.grant)
	require.NoError(t, <-errc)
	assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)

	assert.ErrorIs(t, h.o.StartRecording(context.Background()), capture.ErrAlreadyRecording)
	assert.Equal(t, 1, h.recorder.maxActive)
}

func TestSessionOrchestrator_DeviceUnavailable(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.recorder.err = domain.Wrap(domain.KindDeviceUnavailable, errors.New("permission denied"))

	err := h.o.StartRecording(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	require.NotNil(t, state.LastError)
	assert.Equal(t, domain.KindDeviceUnavailable, state.LastError.Kind)

	// A later successful capture clears the error.
	h.recorder.mu.Lock()
	h.recorder.err = nil
	h.recorder.mu.Unlock()
	require.NoError(t, h.o.StartRecording(context.Background()))
	assert.Nil(t, h.o.State().LastError)
}

func TestSessionOrchestrator_RecordWhileSpeakingCancelsUtterance(t *testing.T) {
	for _, paused := range []bool{false, true} {
		h := newHarness(t, spanishVoices)
		h.speakResponse(t)
		if paused {
			h.o.Pause()
			require.Equal(t, entities.PhasePaused, h.o.State().Phase)
		}
		old := h.speaker.last()
		h.log.reset()

		require.NoError(t, h.o.StartRecording(context.Background()))

		assert.Equal(t, []string{"speaker:cancel", "recorder:start"}, h.log.snapshot())
		assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)

		// Late events of the canceled utterance are ignored.
		old.listener(playback.EventEnd)
		assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)
	}
}

func TestSessionOrchestrator_RecordWhileProcessingSupersedesPipeline(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.stt.results = make(chan textResult, 1)

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())
	require.Eventually(t, func() bool { return h.stt.count() == 1 }, waitFor, 5*time.Millisecond)
	staleCtx := h.stt.lastContext()

	require.NoError(t, h.o.StartRecording(context.Background()))
	assert.ErrorIs(t, staleCtx.Err(), context.Canceled)

	h.stt.results <- textResult{text: "stale"}
	assert.Never(t, func() bool { return h.llm.count() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)
}

func TestSessionOrchestrator_DisconnectWhileTranscribing(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.stt.results = make(chan textResult, 1)

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())
	require.Eventually(t, func() bool { return h.stt.count() == 1 }, waitFor, 5*time.Millisecond)
	before := h.o.State()
	require.Equal(t, entities.PhaseTranscribing, before.Phase)

	h.o.Disconnect()

	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Nil(t, state.LastError)
	assert.Greater(t, state.RequestID, before.RequestID)
	assert.ErrorIs(t, h.stt.lastContext().Err(), context.Canceled)

	h.stt.results <- textResult{text: "hello"}
	assert.Never(t, func() bool {
		return h.llm.count() > 0 || h.o.State().RequestID != state.RequestID
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, entities.PhaseIdle, h.o.State().Phase)
}

func TestSessionOrchestrator_DisconnectWhileCompleting(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.llm.results = make(chan textResult, 1)

	require.NoError(t, h.o.StartRecording(context.Background()))
	require.NoError(t, h.o.StopRecording())
	require.Eventually(t, func() bool { return h.llm.count() == 1 }, waitFor, 5*time.Millisecond)
	before := h.o.State()
	require.Equal(t, entities.PhaseCompleting, before.Phase)

	h.o.Disconnect()

	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Greater(t, state.RequestID, before.RequestID)
	assert.ErrorIs(t, h.llm.lastContext().Err(), context.Canceled)

	// The provider ignores cancellation and answers anyway.
	h.llm.results <- textResult{text: "stale answer"}
	assert.Never(t, func() bool {
		s := h.o.State()
		return h.speaker.count() > 0 || s.Phase != entities.PhaseIdle || s.ResponseText != ""
	}, 100*time.Millisecond, 5*time.Millisecond)

	h.speaker.mu.Lock()
	defer h.speaker.mu.Unlock()
	assert.False(t, h.speaker.current)
}

func TestSessionOrchestrator_StartRecordingSinceSupersededRequest(t *testing.T) {
	h := newHarness(t, spanishVoices)
	observed := h.o.State().RequestID

	// A disconnect handled after the recording request was made wins.
	h.o.Disconnect()
	h.log.reset()

	assert.ErrorIs(t, h.o.StartRecordingSince(context.Background(), observed), ErrSessionReset)
	assert.Empty(t, h.log.snapshot())
	assert.Equal(t, entities.PhaseIdle, h.o.State().Phase)
	assert.False(t, h.recorder.Active())

	require.NoError(t, h.o.StartRecordingSince(context.Background(), h.o.State().RequestID))
	assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)
}

func TestSessionOrchestrator_DisconnectFromAnyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
	}{
		{"idle with error", func(t *testing.T, h *harness) {
			h.recorder.err = domain.Wrap(domain.KindDeviceUnavailable, errors.New("no device"))
			require.Error(t, h.o.StartRecording(context.Background()))
		}},
		{"recording", func(t *testing.T, h *harness) {
			require.NoError(t, h.o.StartRecording(context.Background()))
		}},
		{"transcribing", func(t *testing.T, h *harness) {
			h.stt.results = make(chan textResult, 1)
			t.Cleanup(func() { h.stt.results <- textResult{text: "late"} })
			require.NoError(t, h.o.StartRecording(context.Background()))
			require.NoError(t, h.o.StopRecording())
			require.Eventually(t, func() bool { return h.stt.count() == 1 }, waitFor, 5*time.Millisecond)
			require.Equal(t, entities.PhaseTranscribing, h.o.State().Phase)
		}},
		{"completing", func(t *testing.T, h *harness) {
			h.llm.results = make(chan textResult, 1)
			t.Cleanup(func() { h.llm.results <- textResult{text: "late"} })
			require.NoError(t, h.o.StartRecording(context.Background()))
			require.NoError(t, h.o.StopRecording())
			require.Eventually(t, func() bool { return h.llm.count() == 1 }, waitFor, 5*time.Millisecond)
			require.Equal(t, entities.PhaseCompleting, h.o.State().Phase)
		}},
		{"speaking", func(t *testing.T, h *harness) {
			h.speakResponse(t)
		}},
		{"paused", func(t *testing.T, h *harness) {
			h.speakResponse(t)
			h.o.Pause()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, spanishVoices)
			tt.setup(t, h)

			h.o.Disconnect()

			state := h.o.State()
			assert.Equal(t, entities.PhaseIdle, state.Phase)
			assert.Nil(t, state.LastError)
			assert.Empty(t, state.ResponseText)
			assert.False(t, h.recorder.Active())
			assert.False(t, h.speaker.current)
		})
	}
}

func TestSessionOrchestrator_DisconnectWhileAcquiring(t *testing.T) {
	h := newHarness(t, spanishVoices)
	h.recorder.grant = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- h.o.StartRecording(context.Background()) }()
	require.Eventually(t, func() bool {
		return len(h.log.snapshot()) >= 2
	}, waitFor, 5*time.Millisecond)

	h.o.Disconnect()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSessionReset)
	case <-time.After(waitFor):
		t.Fatal("acquisition was not canceled")
	}
	state := h.o.State()
	assert.Equal(t, entities.PhaseIdle, state.Phase)
	assert.Nil(t, state.LastError)
	assert.False(t, h.recorder.Active())
}

func TestSessionOrchestrator_PauseResume(t *testing.T) {
	h := newHarness(t, spanishVoices)

	h.o.Pause()
	h.o.Resume()
	assert.Equal(t, entities.PhaseIdle, h.o.State().Phase)

	h.speakResponse(t)

	h.o.Resume()
	assert.Equal(t, entities.PhaseSpeaking, h.o.State().Phase)

	h.o.Pause()
	h.o.Pause()
	assert.Equal(t, entities.PhasePaused, h.o.State().Phase)
	assert.True(t, h.speaker.paused)

	h.o.TogglePause()
	assert.Equal(t, entities.PhaseSpeaking, h.o.State().Phase)
	assert.False(t, h.speaker.paused)

	h.o.TogglePause()
	assert.Equal(t, entities.PhasePaused, h.o.State().Phase)
}

func TestSessionOrchestrator_ToggleRecording(t *testing.T) {
	h := newHarness(t, spanishVoices)

	require.NoError(t, h.o.ToggleRecording(context.Background()))
	assert.Equal(t, entities.PhaseRecording, h.o.State().Phase)

	require.NoError(t, h.o.ToggleRecording(context.Background()))
	h.waitPhase(t, entities.PhaseSpeaking)
}

func TestSessionOrchestrator_VoiceSelection(t *testing.T) {
	h := newHarness(t, spanishVoices)
	assert.Equal(t, "Lucia", h.o.State().SelectedVoice)
	assert.Len(t, h.o.Voices(), 2)

	require.NoError(t, h.o.SelectVoice("Jorge"))
	assert.Equal(t, "Jorge", h.o.State().SelectedVoice)
	assert.ErrorIs(t, h.o.SelectVoice("Emma"), voice.ErrVoiceNotFound)

	// An explicit selection survives refreshes.
	h.o.RefreshVoices(append([]entities.Voice{{ID: "v4", Name: "Pilar", Locale: "es-ES"}}, spanishVoices...))
	assert.Equal(t, "Jorge", h.o.State().SelectedVoice)

	h.speakResponse(t)
	assert.Equal(t, "Jorge", h.speaker.last().voice.Name)

	h.o.Disconnect()
	assert.Equal(t, "Pilar", h.o.State().SelectedVoice)
}

func TestSessionOrchestrator_CloseEndsSubscriptions(t *testing.T) {
	h := newHarness(t, spanishVoices)
	updates, unsubscribe := h.o.Subscribe()

	h.o.Close()
	h.o.Close()
	unsubscribe()

	for range updates {
	}
	assert.ErrorIs(t, h.o.StartRecording(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, h.o.StopRecording(), ErrSessionClosed)

	late, _ := h.o.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}
