// Package interpreter defines the interface for speech-to-text and chat
// completion backends.
//
// An interpreter turns audio into a transcript and a conversation into an
// assistant reply. Autoconnect ships with one backend that speaks the
// OpenAI-compatible API (Groq by default).
package interpreter

import (
	"context"

	"github.com/nadzzz/autoconnect/internal/message"
)

// Audio is a recording to transcribe.
type Audio struct {
	// Data is the encoded file content.
	Data []byte

	// Filename is passed to the provider so it can infer the container format.
	Filename string

	// ContentType is the MIME type declared by the client, if any.
	ContentType string
}

// Interpreter is the interface for audio transcription and reply generation.
type Interpreter interface {
	// Name returns the backend identifier (e.g., "openai").
	Name() string

	// Transcribe converts audio to text. The returned text is untrimmed.
	Transcribe(ctx context.Context, audio Audio) (string, error)

	// Complete submits the full message list and returns the first choice's content.
	Complete(ctx context.Context, messages []message.Turn) (string, error)

	// Close releases any resources held by the interpreter.
	Close() error
}
