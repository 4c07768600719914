package entities

// PlaybackState of the current utterance
type PlaybackState string

const (
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// Utterance is one playback attempt. The voice is referenced, not owned.
type Utterance struct {
	ID     string
	Text   string
	Voice  Voice
	Params VoiceParams
	State  PlaybackState
}
