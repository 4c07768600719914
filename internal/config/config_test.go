package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"JWT_SECRET":   "secret",
		"GROQ_API_KEY": "gsk_test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.STTProvider)
	assert.Equal(t, "gsk_test", cfg.TranscriptionAPIKey)
	assert.Equal(t, "gsk_test", cfg.CompletionAPIKey)
	assert.Equal(t, defaultGroqBaseURL, cfg.TranscriptionBaseURL)
	assert.Equal(t, defaultTranscriptionModel, cfg.TranscriptionModel)
	assert.Equal(t, []string{"es-ES", "es-MX"}, cfg.VoiceLocales)
	assert.Equal(t, 1.0, cfg.VoiceParams.Pitch)
	assert.Equal(t, 1.0, cfg.VoiceParams.Rate)
	assert.Equal(t, 10*time.Second, cfg.MicGrantTimeout)
	assert.Equal(t, "WEBM_OPUS", cfg.AudioFormat.Encoding)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"APP_ENV":                "development",
		"JWT_SECRET":             "secret",
		"STT_PROVIDER":           "mock",
		"LLM_PROVIDER":           "Gemini",
		"GEMINI_API_KEY":         "g-key",
		"TTS_PROVIDER":           "mock",
		"VOICE_LOCALES":          " en-US , en-GB ,",
		"VOICE_REFRESH_INTERVAL": "30s",
		"SPEECH_RATE":            "1.2",
		"AUDIO_ENCODING":         "linear16",
		"AUDIO_SAMPLE_RATE":      "16000",
		"DEVICE_CREDENTIALS":     "TTR-001:s3cret, broken, TTR-002:other",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, []string{"en-US", "en-GB"}, cfg.VoiceLocales)
	assert.Equal(t, 30*time.Second, cfg.VoiceRefreshInterval)
	assert.Equal(t, 1.2, cfg.VoiceParams.Rate)
	assert.Equal(t, "LINEAR16", cfg.AudioFormat.Encoding)
	assert.Equal(t, 16000, cfg.AudioFormat.SampleRate)
	assert.Equal(t, map[string]string{"TTR-001": "s3cret", "TTR-002": "other"}, cfg.DeviceCredentials)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"GROQ_API_KEY": "k"}},
		{"missing transcription key", map[string]string{"JWT_SECRET": "s", "LLM_PROVIDER": "mock"}},
		{"missing gemini key", map[string]string{"JWT_SECRET": "s", "STT_PROVIDER": "mock", "LLM_PROVIDER": "gemini"}},
		{"unknown tts provider", map[string]string{"JWT_SECRET": "s", "GROQ_API_KEY": "k", "TTS_PROVIDER": "espeak"}},
		{"bad duration", map[string]string{"JWT_SECRET": "s", "GROQ_API_KEY": "k", "MIC_GRANT_TIMEOUT": "soon"}},
		{"negative duration", map[string]string{"JWT_SECRET": "s", "GROQ_API_KEY": "k", "REQUEST_TIMEOUT": "-1s"}},
		{"bad sample rate", map[string]string{"JWT_SECRET": "s", "GROQ_API_KEY": "k", "AUDIO_SAMPLE_RATE": "100000"}},
		{"zero rate", map[string]string{"JWT_SECRET": "s", "GROQ_API_KEY": "k", "SPEECH_RATE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
