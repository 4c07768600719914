package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satriahrh/tutur/domain/entities"
)

type frame struct {
	Type   MessageType
	Fields map[string]any
	Binary []byte
}

// recordingSender keeps every frame a session or adapter sends
type recordingSender struct {
	mu     sync.Mutex
	frames []frame
}

func (r *recordingSender) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return err
	}
	typ, _ := fields["type"].(string)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{Type: MessageType(typ), Fields: fields})
	return nil
}

func (r *recordingSender) SendBinary(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{Binary: append([]byte(nil), payload...)})
	return nil
}

func (r *recordingSender) snapshot() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame(nil), r.frames...)
}

func (r *recordingSender) types() []MessageType {
	var out []MessageType
	for _, f := range r.snapshot() {
		if f.Binary == nil {
			out = append(out, f.Type)
		}
	}
	return out
}

func (r *recordingSender) count(typ MessageType) int {
	n := 0
	for _, f := range r.snapshot() {
		if f.Binary == nil && f.Type == typ {
			n++
		}
	}
	return n
}

// next waits for the first frame at or after *cursor matching match and
// moves the cursor past it
func (r *recordingSender) next(t *testing.T, cursor *int, match func(frame) bool) frame {
	t.Helper()
	var found frame
	require.Eventually(t, func() bool {
		frames := r.snapshot()
		for i := *cursor; i < len(frames); i++ {
			if match(frames[i]) {
				found = frames[i]
				*cursor = i + 1
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return found
}

func (r *recordingSender) nextType(t *testing.T, cursor *int, typ MessageType) frame {
	t.Helper()
	return r.next(t, cursor, func(f frame) bool { return f.Binary == nil && f.Type == typ })
}

func (r *recordingSender) nextPhase(t *testing.T, cursor *int, phase entities.Phase) frame {
	t.Helper()
	return r.next(t, cursor, func(f frame) bool {
		return f.Type == MessageTypeState && f.Fields["phase"] == string(phase)
	})
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error) {
	return f.text, f.err
}

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

// fakeTTS offers a fixed voice list and synthesizes two chunks per call
type fakeTTS struct {
	voices []entities.Voice
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, voice entities.Voice, params entities.VoiceParams) (<-chan []byte, <-chan error) {
	audio := make(chan []byte)
	errs := make(chan error)
	go func() {
		defer close(audio)
		defer close(errs)
		for _, chunk := range [][]byte{[]byte("pcm-1"), []byte("pcm-2")} {
			select {
			case audio <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audio, errs
}

func (f *fakeTTS) ListVoices(ctx context.Context) ([]entities.Voice, error) {
	return append([]entities.Voice(nil), f.voices...), nil
}

func testDeps() SessionDeps {
	return SessionDeps{
		SpeechToText: &fakeSTT{text: "hola"},
		LLM:          &fakeLLM{text: "hola, ¿qué tal?"},
		TextToSpeech: &fakeTTS{voices: []entities.Voice{
			{ID: "v1", Name: "Lucia", Locale: "es-ES"},
			{ID: "v2", Name: "Jorge", Locale: "es_MX"},
			{ID: "v3", Name: "Emma", Locale: "en-US"},
		}},
		Locales:              []string{"es-ES", "es-MX"},
		VoiceParams:          entities.DefaultVoiceParams(),
		AudioFormat:          entities.AudioFormat{Encoding: "LINEAR16", SampleRate: 16000, Language: "es-ES"},
		MicGrantTimeout:      time.Second,
		RequestTimeout:       5 * time.Second,
		VoiceRefreshInterval: time.Hour,
	}
}
