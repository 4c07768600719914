package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

const voiceListTimeout = 15 * time.Second

// VoiceRefresher lists the provider's voices on start and then periodically.
// Providers expose voices lazily, so the first list may be empty.
type VoiceRefresher struct {
	tts       repositories.TextToSpeech
	interval  time.Duration
	onRefresh func([]entities.Voice)
	logger    *zap.Logger
	stopChan  chan struct{}
}

// NewVoiceRefresher creates a refresher delivering each successful list to onRefresh
func NewVoiceRefresher(tts repositories.TextToSpeech, interval time.Duration, onRefresh func([]entities.Voice), logger *zap.Logger) *VoiceRefresher {
	return &VoiceRefresher{
		tts:       tts,
		interval:  interval,
		onRefresh: onRefresh,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background refresh loop
func (r *VoiceRefresher) Start() {
	go r.refreshLoop()
}

// Stop ends the refresh loop
func (r *VoiceRefresher) Stop() {
	close(r.stopChan)
}

func (r *VoiceRefresher) refreshLoop() {
	r.runRefresh()

	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.runRefresh()
		}
	}
}

func (r *VoiceRefresher) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), voiceListTimeout)
	defer cancel()

	go func() {
		select {
		case <-r.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	voices, err := r.tts.ListVoices(ctx)
	select {
	case <-r.stopChan:
		return
	default:
	}
	if err != nil {
		r.logger.Warn("Failed to list voices", zap.Error(err))
		return
	}
	r.onRefresh(voices)
}
