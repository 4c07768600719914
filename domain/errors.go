package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure the way it is surfaced to the device
type ErrorKind string

const (
	KindDeviceUnavailable   ErrorKind = "DeviceUnavailable"
	KindTranscriptionFailed ErrorKind = "TranscriptionFailed"
	KindCompletionFailed    ErrorKind = "CompletionFailed"
	KindSynthesisFailed     ErrorKind = "SynthesisFailed"
	KindNoVoiceAvailable    ErrorKind = "NoVoiceAvailable"
)

// Sentinel errors, one per kind. Adapters wrap them with %w so callers can use errors.Is.
var (
	ErrDeviceUnavailable   = errors.New("microphone unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrCompletionFailed    = errors.New("completion failed")
	ErrSynthesisFailed     = errors.New("speech synthesis failed")
	ErrNoVoiceAvailable    = errors.New("no voice available")
)

var sentinels = map[ErrorKind]error{
	KindDeviceUnavailable:   ErrDeviceUnavailable,
	KindTranscriptionFailed: ErrTranscriptionFailed,
	KindCompletionFailed:    ErrCompletionFailed,
	KindSynthesisFailed:     ErrSynthesisFailed,
	KindNoVoiceAvailable:    ErrNoVoiceAvailable,
}

// Error is the user-visible descriptor of the last pipeline failure
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is(err, ErrCompletionFailed) match an *Error of the same kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// NewError converts err into a descriptor of the given kind.
func NewError(kind ErrorKind, err error) *Error {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg}
}

// Wrap annotates cause with the sentinel of kind, keeping both in the chain.
func Wrap(kind ErrorKind, cause error) error {
	sentinel, ok := sentinels[kind]
	if !ok {
		return cause
	}
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// KindOf reports the kind of err, falling back to the given default
// when err does not carry one of the sentinels.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return fallback
}
