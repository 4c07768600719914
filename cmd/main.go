package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/adapters/device"
	"github.com/satriahrh/tutur/adapters/llm"
	"github.com/satriahrh/tutur/adapters/stt"
	"github.com/satriahrh/tutur/adapters/tts"
	"github.com/satriahrh/tutur/domain/repositories"
	"github.com/satriahrh/tutur/internal/api"
	"github.com/satriahrh/tutur/internal/auth"
	"github.com/satriahrh/tutur/internal/config"
	"github.com/satriahrh/tutur/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	speechToText, closeSpeech, err := newSpeechToText(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech-to-text", zap.Error(err))
	}
	defer closeSpeech()

	completion, err := newCompletion(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize completion", zap.Error(err))
	}

	textToSpeech, err := newTextToSpeech(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize text-to-speech", zap.Error(err))
	}

	deviceRepo := device.NewMemoryDeviceRepository()
	if err := device.Seed(ctx, deviceRepo, cfg.DeviceCredentials, logger); err != nil {
		logger.Fatal("Failed to register devices", zap.Error(err))
	}
	if len(cfg.DeviceCredentials) == 0 {
		logger.Warn("No devices registered, set DEVICE_CREDENTIALS to allow connections")
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(websocket.SessionDeps{
		SpeechToText:         speechToText,
		LLM:                  completion,
		TextToSpeech:         textToSpeech,
		Locales:              cfg.VoiceLocales,
		VoiceParams:          cfg.VoiceParams,
		AudioFormat:          cfg.AudioFormat,
		MicGrantTimeout:      cfg.MicGrantTimeout,
		RequestTimeout:       cfg.RequestTimeout,
		VoiceRefreshInterval: cfg.VoiceRefreshInterval,
	}, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Hub:          hub,
		DeviceRepo:   deviceRepo,
		Tokens:       tokens,
		TextToSpeech: textToSpeech,
		Locales:      cfg.VoiceLocales,
		Logger:       logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("stt", cfg.STTProvider),
		zap.String("llm", cfg.LLMProvider),
		zap.String("tts", cfg.TTSProvider),
		zap.Strings("locales", cfg.VoiceLocales))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newSpeechToText(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.SpeechToText, func(), error) {
	switch cfg.STTProvider {
	case config.ProviderGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		return google, func() {
			if err := google.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		}, nil
	case config.ProviderMock:
		return stt.NewMockSpeechToText(logger), func() {}, nil
	default:
		transcriber, err := stt.NewOpenAITranscriber(stt.OpenAITranscriberConfig{
			APIKey:  cfg.TranscriptionAPIKey,
			BaseURL: cfg.TranscriptionBaseURL,
			Model:   cfg.TranscriptionModel,
		}, logger)
		return transcriber, func() {}, err
	}
}

func newCompletion(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
	case config.ProviderMock:
		return llm.NewMockLLM(logger), nil
	default:
		return llm.NewOpenAICompletion(llm.OpenAIConfig{
			APIKey:  cfg.CompletionAPIKey,
			BaseURL: cfg.CompletionBaseURL,
			Model:   cfg.CompletionModel,
		}, logger)
	}
}

func newTextToSpeech(cfg config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	if cfg.TTSProvider == config.ProviderMock {
		return tts.NewMockTTS(logger), nil
	}
	return tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
}
