// Package stt defines the Transcriber interface for speech-to-text backends.
//
// Voice notes arrive as complete audio files (typically Ogg/Opus from the chat
// client), so transcription is a single batch call: audio in, text out.
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when Transcribe is called with no audio bytes.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Audio is one recorded voice message.
type Audio struct {
	// Data is the encoded audio file.
	Data []byte

	// Filename is the original file name; backends use its extension as a
	// format hint.
	Filename string

	// ContentType is the MIME type, e.g. "audio/ogg".
	ContentType string
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	// Transcribe returns the recognised text. An empty string with a nil
	// error means the backend heard nothing intelligible.
	Transcribe(ctx context.Context, audio Audio) (string, error)
}
