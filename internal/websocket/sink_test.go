package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDeviceSink_Utterance(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))

	require.NoError(t, sink.Begin("u1"))
	require.NoError(t, sink.WriteAudio("u1", []byte("a")))
	sink.SetPaused(true)
	sink.SetPaused(true)
	sink.SetPaused(false)
	require.NoError(t, sink.WriteAudio("u1", []byte("b")))
	_, err := sink.Flush("u1")
	require.NoError(t, err)

	frames := out.snapshot()
	require.Len(t, frames, 6)
	assert.Equal(t, MessageTypeSpeakingStart, frames[0].Type)
	assert.Equal(t, "u1", frames[0].Fields["utterance_id"])
	assert.Equal(t, []byte("a"), frames[1].Binary)
	assert.Equal(t, MessageTypePlaybackPause, frames[2].Type)
	assert.Equal(t, MessageTypePlaybackResume, frames[3].Type)
	assert.Equal(t, []byte("b"), frames[4].Binary)
	assert.Equal(t, MessageTypeSpeakingEnd, frames[5].Type)
}

func TestDeviceSink_DropsInactiveUtterance(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))

	require.NoError(t, sink.Begin("u1"))
	sink.Reset()
	require.NoError(t, sink.WriteAudio("u1", []byte("stale")))
	_, err := sink.Flush("u1")
	require.NoError(t, err)

	require.NoError(t, sink.Begin("u2"))
	require.NoError(t, sink.WriteAudio("u1", []byte("stale")))
	require.NoError(t, sink.WriteAudio("u2", []byte("fresh")))

	assert.Equal(t, []MessageType{MessageTypeSpeakingStart, MessageTypePlaybackReset, MessageTypeSpeakingStart}, out.types())

	var audio [][]byte
	for _, f := range out.snapshot() {
		if f.Binary != nil {
			audio = append(audio, f.Binary)
		}
	}
	assert.Equal(t, [][]byte{[]byte("fresh")}, audio)
}

func TestDeviceSink_ResetClearsPause(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))

	require.NoError(t, sink.Begin("u1"))
	sink.SetPaused(true)
	sink.Reset()
	require.NoError(t, sink.Begin("u2"))
	sink.SetPaused(true)

	assert.Equal(t, 2, out.count(MessageTypePlaybackPause))
}

func TestDeviceSink_PlayoutEndsOnDeviceReport(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))

	require.NoError(t, sink.Begin("u1"))
	require.NoError(t, sink.WriteAudio("u1", []byte("a")))
	playing, err := sink.Flush("u1")
	require.NoError(t, err)

	// Still playing on the device: controls carry the utterance.
	sink.SetPaused(true)
	frames := out.snapshot()
	assert.Equal(t, MessageTypePlaybackPause, frames[len(frames)-1].Type)
	assert.Equal(t, "u1", frames[len(frames)-1].Fields["utterance_id"])

	sink.HandlePlaybackEnded("other")
	select {
	case <-playing:
		t.Fatal("playout ended on a report for another utterance")
	default:
	}

	sink.HandlePlaybackEnded("u1")
	select {
	case <-playing:
	case <-time.After(time.Second):
		t.Fatal("playout did not end")
	}

	// A repeated report is ignored.
	sink.HandlePlaybackEnded("u1")
}

func TestDeviceSink_PlayoutTimeout(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))
	sink.playoutTimeout = 20 * time.Millisecond

	require.NoError(t, sink.Begin("u1"))
	playing, err := sink.Flush("u1")
	require.NoError(t, err)

	select {
	case <-playing:
	case <-time.After(time.Second):
		t.Fatal("playout did not time out")
	}
}

func TestDeviceSink_ResetDuringPlayout(t *testing.T) {
	out := &recordingSender{}
	sink := NewDeviceSink(out, zaptest.NewLogger(t))
	sink.playoutTimeout = 20 * time.Millisecond

	require.NoError(t, sink.Begin("u1"))
	playing, err := sink.Flush("u1")
	require.NoError(t, err)
	sink.Reset()

	reset := out.snapshot()[len(out.snapshot())-1]
	assert.Equal(t, MessageTypePlaybackReset, reset.Type)
	assert.Equal(t, "u1", reset.Fields["utterance_id"])

	sink.HandlePlaybackEnded("u1")
	select {
	case <-playing:
		t.Fatal("reset utterance reported a natural end")
	case <-time.After(50 * time.Millisecond):
	}
}
