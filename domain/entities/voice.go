package entities

// Voice is a synthesis voice as listed by the catalog. Immutable once listed.
type Voice struct {
	// ID is the provider identifier used for synthesis
	ID string `json:"id"`
	// Name is unique within a catalog
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// VoiceParams are the prosody parameters applied to an utterance
type VoiceParams struct {
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// DefaultVoiceParams returns neutral prosody
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{Pitch: 1.0, Rate: 1.0}
}
