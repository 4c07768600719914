package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/adapters/tts"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
	"github.com/satriahrh/tutur/internal/voice"
)

func main() {
	godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var engine repositories.TextToSpeech
	if os.Getenv("TTS_PROVIDER") == "mock" {
		engine = tts.NewMockTTS(logger)
	} else {
		engine, err = tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to create TTS service", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	locales := []string{"es-ES", "es-MX"}
	if v := os.Getenv("VOICE_LOCALES"); v != "" {
		locales = strings.Split(v, ",")
	}

	all, err := engine.ListVoices(ctx)
	if err != nil {
		logger.Fatal("Failed to list voices", zap.Error(err))
	}
	voices := voice.Filter(all, locales)
	if len(voices) == 0 {
		logger.Fatal("No voice matches the accepted locales", zap.Strings("locales", locales))
	}

	fmt.Printf("Available voices (%d):\n", len(voices))
	for _, v := range voices {
		fmt.Printf("  - %s [%s] (ID: %s)\n", v.Name, v.Locale, v.ID)
	}

	selected := voices[0]
	text := "¡Hola! Esta es una demostración de la síntesis de voz en tutur."
	logger.Info("Converting text to speech", zap.String("text", text), zap.String("voice", selected.Name))

	audioChan, errChan := engine.Synthesize(ctx, text, selected, entities.DefaultVoiceParams())

	outputFile := "example_output.pcm"
	file, err := os.Create(outputFile)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	defer file.Close()

	totalBytes := 0
	chunkCount := 0
	for audioChan != nil || errChan != nil {
		select {
		case chunk, ok := <-audioChan:
			if !ok {
				audioChan = nil
				continue
			}
			n, err := file.Write(chunk)
			if err != nil {
				logger.Fatal("Failed to write audio chunk", zap.Error(err))
			}
			totalBytes += n
			chunkCount++
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			logger.Fatal("Synthesis failed", zap.Error(err))
		}
	}

	logger.Info("Audio conversion completed",
		zap.Int("totalChunks", chunkCount),
		zap.Int("totalBytes", totalBytes),
		zap.String("outputFile", outputFile))

	fmt.Printf("Audio saved to %s (%d bytes in %d chunks)\n", outputFile, totalBytes, chunkCount)
	fmt.Printf("Play it with: ffplay -f s16le -ar 24000 -ac 1 %s\n", outputFile)
}
