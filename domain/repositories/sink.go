package repositories

// AudioSink consumes synthesized audio and performs delivery.
// Writes tagged with an utterance other than the active one are dropped.
type AudioSink interface {
	// Begin makes utteranceID the active utterance
	Begin(utteranceID string) error
	WriteAudio(utteranceID string, chunk []byte) error
	SetPaused(paused bool)
	// Flush marks the end of the utterance's audio. The returned channel is
	// closed once the delivered audio has finished playing; the utterance
	// stays active until then.
	Flush(utteranceID string) (<-chan struct{}, error)
	// Reset drops any queued audio immediately and clears the active utterance
	Reset()
}
