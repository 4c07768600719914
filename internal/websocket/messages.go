package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/tutur/domain"
	"github.com/satriahrh/tutur/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Device -> server message types
const (
	MessageTypeRecordStart   MessageType = "record_start"
	MessageTypeRecordStop    MessageType = "record_stop"
	MessageTypeRecordToggle  MessageType = "record_toggle"
	MessageTypePause         MessageType = "pause"
	MessageTypeResume        MessageType = "resume"
	MessageTypePauseToggle   MessageType = "pause_toggle"
	MessageTypeDisconnect    MessageType = "disconnect"
	MessageTypeSelectVoice   MessageType = "select_voice"
	MessageTypeMicGranted    MessageType = "mic_granted"
	MessageTypeMicDenied     MessageType = "mic_denied"
	MessageTypeMicClosed     MessageType = "mic_closed"
	MessageTypePlaybackEnded MessageType = "playback_ended"
	MessageTypePing          MessageType = "ping"
)

// Server -> device message types
const (
	MessageTypeState          MessageType = "state"
	MessageTypeVoices         MessageType = "voices"
	MessageTypeMicOpen        MessageType = "mic_open"
	MessageTypeMicClose       MessageType = "mic_close"
	MessageTypeSpeakingStart  MessageType = "speaking_start"
	MessageTypePlaybackPause  MessageType = "playback_pause"
	MessageTypePlaybackResume MessageType = "playback_resume"
	MessageTypePlaybackReset  MessageType = "playback_reset"
	MessageTypeSpeakingEnd    MessageType = "speaking_end"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
	MessageTypeDisconnected   MessageType = "disconnected"
)

// Error codes sent in error messages that do not come from the pipeline
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeVoiceNotFound  = "voice_not_found"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// InboundMessage is any control message sent by a device. Other fields,
// such as a device timestamp, are ignored.
type InboundMessage struct {
	Type        MessageType `json:"type"`
	Voice       string      `json:"voice,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	UtteranceID string      `json:"utterance_id,omitempty"`
}

// StateMessage mirrors a session snapshot
type StateMessage struct {
	BaseMessage
	Phase         entities.Phase `json:"phase"`
	RequestID     uint64         `json:"request_id"`
	Error         *domain.Error  `json:"error"`
	ResponseText  string         `json:"response_text"`
	SelectedVoice string         `json:"selected_voice"`
}

// VoicesMessage lists the voices a device may select
type VoicesMessage struct {
	BaseMessage
	Voices   []entities.Voice `json:"voices"`
	Selected string           `json:"selected"`
}

// MicOpenMessage asks the device to start streaming its microphone
type MicOpenMessage struct {
	BaseMessage
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
}

// PlaybackMessage is a playback control tagged with its utterance
type PlaybackMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ParseInbound decodes and validates a control message from a device
func ParseInbound(messageBytes []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case MessageTypeRecordStart, MessageTypeRecordStop, MessageTypeRecordToggle,
		MessageTypePause, MessageTypeResume, MessageTypePauseToggle,
		MessageTypeDisconnect, MessageTypeMicGranted, MessageTypeMicDenied,
		MessageTypeMicClosed, MessageTypePing:
	case MessageTypeSelectVoice:
		if msg.Voice == "" {
			return InboundMessage{}, fmt.Errorf("voice is required")
		}
	case MessageTypePlaybackEnded:
		if msg.UtteranceID == "" {
			return InboundMessage{}, fmt.Errorf("utterance_id is required")
		}
	case "":
		return InboundMessage{}, fmt.Errorf("message missing type field")
	default:
		return InboundMessage{}, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
	return msg, nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// NewStateMessage converts a session snapshot for the wire
func NewStateMessage(s entities.SessionState) *StateMessage {
	return &StateMessage{
		BaseMessage:   newBase(MessageTypeState),
		Phase:         s.Phase,
		RequestID:     s.RequestID,
		Error:         s.LastError,
		ResponseText:  s.ResponseText,
		SelectedVoice: s.SelectedVoice,
	}
}

// NewVoicesMessage lists voices and the current selection
func NewVoicesMessage(voices []entities.Voice, selected string) *VoicesMessage {
	if voices == nil {
		voices = []entities.Voice{}
	}
	return &VoicesMessage{
		BaseMessage: newBase(MessageTypeVoices),
		Voices:      voices,
		Selected:    selected,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
	}
}

// NewPipelineErrorMessage reports a session failure by its kind
func NewPipelineErrorMessage(e *domain.Error) *ErrorMessage {
	return CreateErrorMessage(string(e.Kind), e.Message)
}

// NewPlaybackMessage creates a playback control message
func NewPlaybackMessage(t MessageType, utteranceID string) *PlaybackMessage {
	return &PlaybackMessage{BaseMessage: newBase(t), UtteranceID: utteranceID}
}

// NewSignal creates a message that carries only its type
func NewSignal(t MessageType) *BaseMessage {
	base := newBase(t)
	return &base
}
