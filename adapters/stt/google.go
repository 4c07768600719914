package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

// recognizer is the subset of the Cloud Speech client used here
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// GoogleSpeechToText implements SpeechToText with Google Cloud Speech-to-Text
type GoogleSpeechToText struct {
	client recognizer
	closer func() error
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, closer: client.Close, logger: logger}, nil
}

// Transcribe sends the whole buffer in one synchronous Recognize call
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio entities.AudioBuffer) (string, error) {
	encoding, err := getAudioEncoding(audio.Format.Encoding)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, err)
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(audio.Format.SampleRate),
			LanguageCode:    audio.Format.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	}

	g.logger.Debug("Sending recognize request",
		zap.String("encoding", audio.Format.Encoding),
		zap.Int("sampleRate", audio.Format.SampleRate),
		zap.Int("audioSize", len(audio.Data)))

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscriptionFailed, fmt.Errorf("recognize failed: %w", err))
	}

	// Consecutive results cover consecutive portions of the audio.
	var parts []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
