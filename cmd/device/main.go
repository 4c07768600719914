// Command device simulates a microphone/speaker device: it authenticates,
// records one utterance from an audio file, saves the spoken response and
// reports the end of playback once the response would have finished playing.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/internal/api"
)

type serverMessage struct {
	Type          string          `json:"type"`
	Phase         string          `json:"phase"`
	RequestID     uint64          `json:"request_id"`
	ResponseText  string          `json:"response_text"`
	SelectedVoice string          `json:"selected_voice"`
	Selected      string          `json:"selected"`
	Code          string          `json:"error_code"`
	Message       string          `json:"message"`
	Voices        json.RawMessage `json:"voices"`
	UtteranceID   string          `json:"utterance_id"`
}

type frame struct {
	binary  []byte
	message serverMessage
}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("DEVICE_SERVER", "http://localhost:8080"), "server base URL")
	serial := flag.String("serial", os.Getenv("DEVICE_SERIAL"), "device serial number")
	secret := flag.String("secret", os.Getenv("DEVICE_SECRET"), "device secret")
	audioPath := flag.String("audio", "sample_audio.webm", "audio file streamed as the microphone")
	chunkSize := flag.Int("chunk", 1024, "microphone frame size in bytes")
	voiceName := flag.String("voice", "", "voice to select before recording")
	output := flag.String("out", "response.pcm", "file receiving the spoken response")
	sampleRate := flag.Int("rate", 24000, "sample rate of the 16-bit mono response audio")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	audio, err := os.ReadFile(*audioPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.String("path", *audioPath), zap.Error(err))
	}

	auth, err := authenticateDevice(*server, *serial, *secret)
	if err != nil {
		logger.Fatal("Failed to authenticate device", zap.Error(err))
	}
	logger.Info("Device authenticated", zap.String("deviceID", auth.DeviceID), zap.Time("expiresAt", auth.ExpiresAt))

	wsURL, err := socketURL(*server)
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+auth.Token)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, headers)
	if err != nil {
		logger.Fatal("Failed to connect", zap.String("url", wsURL), zap.Error(err))
	}
	defer conn.Close()

	frames := make(chan frame, 64)
	go readFrames(conn, frames, logger)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	sim := &simulator{
		conn:       conn,
		audio:      audio,
		chunkSize:  *chunkSize,
		voice:      *voiceName,
		sampleRate: *sampleRate,
		logger:     logger,
	}
	if err := sim.run(frames, interrupt); err != nil {
		logger.Error("Conversation failed", zap.Error(err))
	}

	if len(sim.response) > 0 {
		if err := os.WriteFile(*output, sim.response, 0o644); err != nil {
			logger.Error("Failed to save response audio", zap.Error(err))
		} else {
			logger.Info("Response audio saved", zap.String("path", *output), zap.Int("bytes", len(sim.response)))
		}
	}

	_ = conn.WriteJSON(map[string]string{"type": "disconnect"})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

type simulator struct {
	conn       *websocket.Conn
	audio      []byte
	chunkSize  int
	voice      string
	sampleRate int
	logger     *zap.Logger

	response []byte
	started  bool
	streamed bool
	busy     bool

	// playback of the current utterance, simulated from its byte count
	utteranceID    string
	utteranceBytes int
	utteranceStart time.Time
	playedOut      <-chan time.Time
}

// run drives one record/response cycle until the session is idle again
func (s *simulator) run(frames <-chan frame, interrupt <-chan os.Signal) error {
	timeout := time.After(2 * time.Minute)

	for {
		select {
		case <-interrupt:
			return errors.New("interrupted")
		case <-timeout:
			return errors.New("timed out waiting for the response")
		case <-s.playedOut:
			s.playedOut = nil
			s.logger.Info("Playback finished", zap.String("utteranceID", s.utteranceID))
			if err := s.conn.WriteJSON(map[string]string{"type": "playback_ended", "utterance_id": s.utteranceID}); err != nil {
				return err
			}
		case f, ok := <-frames:
			if !ok {
				return errors.New("connection closed")
			}
			if f.binary != nil {
				s.response = append(s.response, f.binary...)
				s.utteranceBytes += len(f.binary)
				continue
			}
			done, err := s.handle(f.message)
			if err != nil || done {
				return err
			}
		}
	}
}

func (s *simulator) handle(msg serverMessage) (bool, error) {
	switch msg.Type {
	case "voices":
		s.logger.Info("Voices listed", zap.ByteString("voices", msg.Voices), zap.String("selected", msg.Selected))
		if s.started {
			return false, nil
		}
		s.started = true
		if s.voice != "" && s.voice != msg.Selected {
			if err := s.conn.WriteJSON(map[string]string{"type": "select_voice", "voice": s.voice}); err != nil {
				return false, err
			}
		}
		return false, s.conn.WriteJSON(map[string]string{"type": "record_start"})

	case "mic_open":
		s.logger.Info("Microphone requested, granting")
		return false, s.conn.WriteJSON(map[string]string{"type": "mic_granted"})

	case "mic_close":
		s.logger.Info("Microphone closed by server")

	case "state":
		s.logger.Info("State",
			zap.String("phase", msg.Phase),
			zap.Uint64("requestID", msg.RequestID),
			zap.String("voice", msg.SelectedVoice),
			zap.String("response", msg.ResponseText))
		switch msg.Phase {
		case "recording":
			if s.streamed {
				return false, nil
			}
			s.streamed = true
			return false, s.streamMicrophone()
		case "transcribing", "completing", "speaking", "paused":
			s.busy = true
		case "idle":
			if s.busy {
				return true, nil
			}
		}

	case "speaking_start":
		s.logger.Info("Speaking started", zap.String("utteranceID", msg.UtteranceID))
		s.utteranceID = msg.UtteranceID
		s.utteranceBytes = 0
		s.utteranceStart = time.Now()
	case "speaking_end":
		remaining := s.playbackDuration() - time.Since(s.utteranceStart)
		s.logger.Info("Response audio received",
			zap.Int("bytes", s.utteranceBytes),
			zap.Duration("remainingPlayback", max(remaining, 0)))
		s.playedOut = time.After(max(remaining, 0))
	case "playback_reset":
		s.logger.Info("Playback reset by server")
		s.playedOut = nil

	case "error":
		s.logger.Warn("Server reported an error", zap.String("code", msg.Code), zap.String("message", msg.Message))
		if msg.Code == "DeviceUnavailable" {
			return true, fmt.Errorf("%s: %s", msg.Code, msg.Message)
		}
	}
	return false, nil
}

// playbackDuration is how long the received 16-bit mono audio takes to play
func (s *simulator) playbackDuration() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(s.utteranceBytes) * time.Second / time.Duration(s.sampleRate*2)
}

// streamMicrophone sends the audio file as paced binary frames, then stops recording
func (s *simulator) streamMicrophone() error {
	for start := 0; start < len(s.audio); start += s.chunkSize {
		end := min(start+s.chunkSize, len(s.audio))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, s.audio[start:end]); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.logger.Info("Microphone audio sent", zap.Int("bytes", len(s.audio)))
	return s.conn.WriteJSON(map[string]string{"type": "record_stop"})
}

func readFrames(conn *websocket.Conn, frames chan<- frame, logger *zap.Logger) {
	defer close(frames)
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				logger.Error("Read failed", zap.Error(err))
			}
			return
		}
		if messageType == websocket.BinaryMessage {
			frames <- frame{binary: payload}
			continue
		}
		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("Unreadable server message", zap.Error(err))
			continue
		}
		frames <- frame{message: msg}
	}
}

func authenticateDevice(server, serial, secret string) (*api.DeviceAuthResponse, error) {
	jsonData, err := json.Marshal(api.DeviceAuthRequest{SerialNumber: serial, SecretKey: secret})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(strings.TrimRight(server, "/")+"/api/v1/device/auth", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authentication failed: %s", string(body))
	}

	var authResp api.DeviceAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, err
	}
	return &authResp, nil
}

func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
