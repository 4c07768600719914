package entities

import "time"

// AudioFormat describes the single capture format negotiated with devices
type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

// FileName returns the upload name used for multipart transcription requests
func (f AudioFormat) FileName() string {
	switch f.Encoding {
	case "WEBM_OPUS":
		return "audio.webm"
	case "OGG_OPUS":
		return "audio.ogg"
	case "FLAC":
		return "audio.flac"
	case "MP3":
		return "audio.mp3"
	default:
		return "audio.wav"
	}
}

// AudioBuffer is a finalized recording
type AudioBuffer struct {
	Data       []byte
	Format     AudioFormat
	Chunks     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock length of the capture
func (b AudioBuffer) Duration() time.Duration {
	if b.FinishedAt.Before(b.StartedAt) {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Empty reports whether no audio was captured
func (b AudioBuffer) Empty() bool {
	return len(b.Data) == 0
}
