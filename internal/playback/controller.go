package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

// Event is an observable playback event. It carries no data beyond its kind.
type Event string

const (
	EventStart Event = "start"
	EventEnd   Event = "end"
	EventError Event = "error"
)

// Listener receives the events of a single utterance
type Listener func(Event)

var errNoAudio = errors.New("synthesis produced no audio")

type utterance struct {
	entities.Utterance
	cancel   context.CancelFunc
	listener Listener
	// resume is closed when a paused utterance continues
	resume   chan struct{}
	started  bool
}

// Controller synthesizes and plays one utterance at a time
type Controller struct {
	tts    repositories.TextToSpeech
	sink   repositories.AudioSink
	params entities.VoiceParams
	logger *zap.Logger

	mu      sync.Mutex
	current *utterance
}

// NewController creates a playback controller
func NewController(tts repositories.TextToSpeech, sink repositories.AudioSink, params entities.VoiceParams, logger *zap.Logger) *Controller {
	return &Controller{
		tts:    tts,
		sink:   sink,
		params: params,
		logger: logger,
	}
}

// Speak supersedes any utterance in progress and starts synthesizing text.
// Events of the superseded utterance are never delivered.
func (c *Controller) Speak(text string, voice *entities.Voice, listener Listener) error {
	if voice == nil {
		return domain.ErrNoVoiceAvailable
	}
	if c.tts == nil || c.sink == nil {
		return domain.Wrap(domain.KindSynthesisFailed, errors.New("no speech engine available"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{
		Utterance: entities.Utterance{
			ID:     uuid.NewString(),
			Text:   text,
			Voice:  *voice,
			Params: c.params,
			State:  entities.PlaybackPlaying,
		},
		cancel:   cancel,
		listener: listener,
	}

	c.mu.Lock()
	previous := c.current
	c.current = u
	c.mu.Unlock()

	if previous != nil {
		previous.cancel()
		c.sink.Reset()
		c.logger.Info("Utterance superseded", zap.String("utteranceID", previous.ID))
	}

	c.logger.Info("Speaking",
		zap.String("utteranceID", u.ID),
		zap.String("voice", u.Voice.Name),
		zap.Int("textLength", len(text)))

	go c.run(ctx, u)
	return nil
}

func (c *Controller) run(ctx context.Context, u *utterance) {
	audio, errs := c.tts.Synthesize(ctx, u.Text, u.Voice, u.Params)

	for audio != nil || errs != nil {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				c.fail(u, err)
				return
			}

		case chunk, ok := <-audio:
			if !ok {
				audio = nil
				continue
			}
			if len(chunk) == 0 {
				continue
			}
			if !c.waitWhilePaused(ctx, u) {
				return
			}
			if !u.started {
				if err := c.sink.Begin(u.ID); err != nil {
					c.fail(u, err)
					return
				}
				u.started = true
				c.emit(u, EventStart)
			}
			if err := c.sink.WriteAudio(u.ID, chunk); err != nil {
				c.fail(u, err)
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if !u.started {
		c.fail(u, errNoAudio)
		return
	}
	if !c.waitWhilePaused(ctx, u) {
		return
	}
	played, err := c.sink.Flush(u.ID)
	if err != nil {
		c.fail(u, err)
		return
	}
	// The utterance stays current until its audio has played out, so it can
	// still be paused or canceled.
	select {
	case <-played:
	case <-ctx.Done():
		return
	}
	// The natural end is never reported while paused.
	if !c.waitWhilePaused(ctx, u) {
		return
	}
	c.finish(u, EventEnd)
}

// waitWhilePaused blocks while u is paused; false means u was canceled
func (c *Controller) waitWhilePaused(ctx context.Context, u *utterance) bool {
	for {
		c.mu.Lock()
		resume := u.resume
		c.mu.Unlock()

		if resume == nil {
			return ctx.Err() == nil
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return false
		}
	}
}

func (c *Controller) emit(u *utterance, ev Event) {
	c.mu.Lock()
	current := c.current == u
	c.mu.Unlock()

	if current && u.listener != nil {
		u.listener(ev)
	}
}

func (c *Controller) fail(u *utterance, err error) {
	c.logger.Error("Playback failed", zap.String("utteranceID", u.ID), zap.Error(err))
	if c.release(u, true) {
		c.notify(u, EventError)
	}
}

func (c *Controller) finish(u *utterance, ev Event) {
	if c.release(u, false) {
		c.logger.Info("Utterance finished", zap.String("utteranceID", u.ID))
		c.notify(u, ev)
	}
}

// release clears u if it is still the current utterance. The sink is reset
// under the lock so a successor utterance cannot be cut off.
func (c *Controller) release(u *utterance, reset bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != u {
		return false
	}
	c.current = nil
	u.cancel()
	if reset {
		c.sink.Reset()
	}
	return true
}

func (c *Controller) notify(u *utterance, ev Event) {
	if u.listener != nil {
		u.listener(ev)
	}
}

// Pause suspends the current utterance. It reports false when there is
// nothing to pause.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	u := c.current
	if u == nil || u.resume != nil {
		c.mu.Unlock()
		return false
	}
	u.resume = make(chan struct{})
	u.State = entities.PlaybackPaused
	c.mu.Unlock()

	c.sink.SetPaused(true)
	c.logger.Info("Playback paused", zap.String("utteranceID", u.ID))
	return true
}

// Resume continues a paused utterance. It reports false when nothing is paused.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	u := c.current
	if u == nil || u.resume == nil {
		c.mu.Unlock()
		return false
	}
	close(u.resume)
	u.resume = nil
	u.State = entities.PlaybackPlaying
	c.mu.Unlock()

	c.sink.SetPaused(false)
	c.logger.Info("Playback resumed", zap.String("utteranceID", u.ID))
	return true
}

// Cancel stops playback and discards the utterance. Idempotent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	u := c.current
	c.current = nil
	c.mu.Unlock()

	if u == nil {
		return
	}
	u.cancel()
	c.sink.Reset()
	c.logger.Info("Playback canceled", zap.String("utteranceID", u.ID))
}

// Current returns the utterance in progress, if any
func (c *Controller) Current() (entities.Utterance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return entities.Utterance{}, false
	}
	return c.current.Utterance, true
}

// State reports whether an utterance is playing or paused
func (c *Controller) State() (entities.PlaybackState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return "", false
	}
	return c.current.State, true
}
