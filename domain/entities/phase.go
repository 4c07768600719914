package entities

// Phase is the orchestrator's current top-level state
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRecording    Phase = "recording"
	PhaseTranscribing Phase = "transcribing"
	PhaseCompleting   Phase = "completing"
	PhaseSpeaking     Phase = "speaking"
	// PhasePaused is a sub-state of PhaseSpeaking with playback suspended.
	PhasePaused Phase = "paused"
)

// IsSpeaking reports whether an utterance exists in this phase.
func (p Phase) IsSpeaking() bool {
	return p == PhaseSpeaking || p == PhasePaused
}

// IsProcessing reports whether a transcription or completion request is in flight.
func (p Phase) IsProcessing() bool {
	return p == PhaseTranscribing || p == PhaseCompleting
}
