package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/tutur/domain/entities"
)

const (
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"

	defaultPort                 = "8080"
	defaultGroqBaseURL          = "https://api.groq.com/openai/v1"
	defaultTranscriptionModel   = "whisper-large-v3-turbo"
	defaultCompletionModel      = "llama-3.3-70b-versatile"
	defaultGeminiModel          = "gemini-2.0-flash"
	defaultVoiceLocales         = "es-ES,es-MX"
	defaultVoiceRefreshInterval = 5 * time.Minute
	defaultMicGrantTimeout      = 10 * time.Second
	defaultRequestTimeout       = 60 * time.Second
	defaultAudioEncoding        = "WEBM_OPUS"
	defaultAudioSampleRate      = 48000
	defaultAudioLanguage        = "es-ES"
)

// Config holds application configuration
type Config struct {
	Port              string
	Env               string
	JWTSecret         string
	DeviceCredentials map[string]string

	STTProvider          string
	TranscriptionAPIKey  string
	TranscriptionBaseURL string
	TranscriptionModel   string

	LLMProvider       string
	CompletionAPIKey  string
	CompletionBaseURL string
	CompletionModel   string
	GeminiAPIKey      string
	GeminiModel       string

	TTSProvider          string
	VoiceLocales         []string
	VoiceRefreshInterval time.Duration
	VoiceParams          entities.VoiceParams

	AudioFormat     entities.AudioFormat
	MicGrantTimeout time.Duration
	RequestTimeout  time.Duration
}

// Load reads .env (if present) and environment variables, applying defaults
func Load() (Config, error) {
	// Missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	groqKey := getenv("GROQ_API_KEY")

	cfg := Config{
		Port:              orDefault(getenv("PORT"), defaultPort),
		Env:               orDefault(getenv("APP_ENV"), "production"),
		JWTSecret:         getenv("JWT_SECRET"),
		DeviceCredentials: parseCredentials(getenv("DEVICE_CREDENTIALS")),

		STTProvider:          strings.ToLower(orDefault(getenv("STT_PROVIDER"), ProviderOpenAI)),
		TranscriptionAPIKey:  orDefault(getenv("TRANSCRIPTION_API_KEY"), groqKey),
		TranscriptionBaseURL: orDefault(getenv("TRANSCRIPTION_BASE_URL"), defaultGroqBaseURL),
		TranscriptionModel:   orDefault(getenv("TRANSCRIPTION_MODEL"), defaultTranscriptionModel),

		LLMProvider:       strings.ToLower(orDefault(getenv("LLM_PROVIDER"), ProviderOpenAI)),
		CompletionAPIKey:  orDefault(getenv("COMPLETION_API_KEY"), groqKey),
		CompletionBaseURL: orDefault(getenv("COMPLETION_BASE_URL"), defaultGroqBaseURL),
		CompletionModel:   orDefault(getenv("COMPLETION_MODEL"), defaultCompletionModel),
		GeminiAPIKey:      getenv("GEMINI_API_KEY"),
		GeminiModel:       orDefault(getenv("GEMINI_MODEL"), defaultGeminiModel),

		TTSProvider:  strings.ToLower(orDefault(getenv("TTS_PROVIDER"), ProviderElevenLabs)),
		VoiceLocales: splitList(orDefault(getenv("VOICE_LOCALES"), defaultVoiceLocales)),
		VoiceParams:  entities.DefaultVoiceParams(),

		AudioFormat: entities.AudioFormat{
			Encoding:   strings.ToUpper(orDefault(getenv("AUDIO_ENCODING"), defaultAudioEncoding)),
			SampleRate: defaultAudioSampleRate,
			Language:   orDefault(getenv("AUDIO_LANGUAGE"), defaultAudioLanguage),
		},
	}

	var err error
	if cfg.VoiceRefreshInterval, err = parseDuration(getenv, "VOICE_REFRESH_INTERVAL", defaultVoiceRefreshInterval); err != nil {
		return Config{}, err
	}
	if cfg.MicGrantTimeout, err = parseDuration(getenv, "MIC_GRANT_TIMEOUT", defaultMicGrantTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = parseDuration(getenv, "REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.VoiceParams.Pitch, err = parseFloat(getenv, "SPEECH_PITCH", cfg.VoiceParams.Pitch); err != nil {
		return Config{}, err
	}
	if cfg.VoiceParams.Rate, err = parseFloat(getenv, "SPEECH_RATE", cfg.VoiceParams.Rate); err != nil {
		return Config{}, err
	}
	if v := getenv("AUDIO_SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUDIO_SAMPLE_RATE %q: %w", v, err)
		}
		cfg.AudioFormat.SampleRate = rate
	}

	return cfg, cfg.Validate()
}

// Validate rejects inconsistent provider settings
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.STTProvider {
	case ProviderOpenAI:
		if c.TranscriptionAPIKey == "" {
			return fmt.Errorf("TRANSCRIPTION_API_KEY (or GROQ_API_KEY) is required for stt provider %q", c.STTProvider)
		}
	case ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("unsupported STT_PROVIDER %q", c.STTProvider)
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.CompletionAPIKey == "" {
			return fmt.Errorf("COMPLETION_API_KEY (or GROQ_API_KEY) is required for llm provider %q", c.LLMProvider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for llm provider %q", c.LLMProvider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.TTSProvider {
	case ProviderElevenLabs, ProviderMock:
	default:
		return fmt.Errorf("unsupported TTS_PROVIDER %q", c.TTSProvider)
	}

	if len(c.VoiceLocales) == 0 {
		return fmt.Errorf("VOICE_LOCALES must list at least one locale")
	}
	if c.VoiceParams.Rate <= 0 || c.VoiceParams.Pitch <= 0 {
		return fmt.Errorf("SPEECH_RATE and SPEECH_PITCH must be positive")
	}
	if c.AudioFormat.SampleRate < 8000 || c.AudioFormat.SampleRate > 48000 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be between 8000 and 48000, got %d", c.AudioFormat.SampleRate)
	}
	return nil
}

// IsDevelopment reports whether development logging should be used
func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseCredentials parses "serial:secret,serial2:secret2"
func parseCredentials(v string) map[string]string {
	creds := make(map[string]string)
	for _, pair := range splitList(v) {
		serial, secret, ok := strings.Cut(pair, ":")
		if !ok || serial == "" || secret == "" {
			continue
		}
		creds[strings.TrimSpace(serial)] = strings.TrimSpace(secret)
	}
	return creds
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func parseFloat(getenv func(string) string, key string, def float64) (float64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}
