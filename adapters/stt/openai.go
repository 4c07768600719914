package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

const (
	defaultTranscriptionBaseURL = "https://api.groq.com/openai/v1"
	defaultTranscriptionModel   = "whisper-large-v3-turbo"
	defaultTranscriptionTimeout = 60 * time.Second
)

// OpenAITranscriberConfig configures an OpenAI-compatible transcription endpoint.
// APIKey is required; the rest falls back to Groq defaults.
type OpenAITranscriberConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAITranscriber implements SpeechToText against an OpenAI-compatible
// /audio/transcriptions endpoint
type OpenAITranscriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*OpenAITranscriber)(nil)

// transcriptionResponse keeps Text nil when the field is absent
type transcriptionResponse struct {
	Text *string `json:"text"`
}

type upstreamError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ValidateOpenAITranscriberConfig validates the OpenAITranscriberConfig
func ValidateOpenAITranscriberConfig(config OpenAITranscriberConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("transcription API key is required")
	}
	return nil
}

// NewOpenAITranscriber creates a transcriber
func NewOpenAITranscriber(config OpenAITranscriberConfig, logger *zap.Logger) (*OpenAITranscriber, error) {
	if err := ValidateOpenAITranscriberConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTranscriptionBaseURL
		logger.Info("Using default transcription base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultTranscriptionModel
		logger.Info("Using default transcription model", zap.String("model", model))
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTranscriptionTimeout}
	}

	return &OpenAITranscriber{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  logger,
	}, nil
}

// Transcribe uploads the buffer as a single file and returns the transcript
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error) {
	body, contentType, err := t.encode(audio)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, err)
	}

	url := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", contentType)

	t.logger.Debug("Sending transcription request",
		zap.String("url", url),
		zap.String("model", t.model),
		zap.Int("audioSize", len(audio.Data)))

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("failed to execute HTTP request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Error("Transcription API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(raw)))
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("%d - %s", resp.StatusCode, upstreamMessage(raw, http.StatusText(resp.StatusCode))))
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("failed to decode response: %w", err))
	}
	if parsed.Text == nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("response has no text field"))
	}

	t.logger.Info("Transcription received", zap.Int("length", len(*parsed.Text)))
	return *parsed.Text, nil
}

func (t *OpenAITranscriber) encode(audio entities.AudioBuffer) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", audio.Format.FileName())
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}
	if audio.Format.Language != "" {
		// Whisper expects ISO-639-1, e.g. "es" for "es-ES".
		lang := strings.SplitN(audio.Format.Language, "-", 2)[0]
		if err := w.WriteField("language", strings.ToLower(lang)); err != nil {
			return nil, "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// upstreamMessage extracts error.message from an OpenAI-style error body
func upstreamMessage(raw []byte, fallback string) string {
	var body upstreamError
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return fallback
}
