// Package tts defines the interface for text-to-speech synthesis.
//
// Autoconnect speaks every assistant reply back to the caller. Synthesis is
// best effort: callers treat any error from a Synthesizer as "no audio" and
// still answer with text.
package tts

import (
	"context"
	"errors"
	"fmt"
)

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates the complete audio for text.
	Synthesize(ctx context.Context, text string) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the concatenation of every chunk the provider streamed.
	Audio []byte

	// ContentType is the MIME type of Audio as reported by the provider.
	ContentType string

	// Chunks is the number of chunks received.
	Chunks int
}

// Cause is the coarse classification of a synthesis failure.
type Cause string

const (
	// CauseAuth means the provider rejected the credential.
	CauseAuth Cause = "auth"

	// CauseGeneric covers everything else: quota exhaustion, outages, network errors.
	CauseGeneric Cause = "generic"
)

// Hint is the operator-facing explanation logged for a cause.
func (c Cause) Hint() string {
	if c == CauseAuth {
		return "invalid API key or authentication error"
	}
	return "TTS API error, possibly out of tokens"
}

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("empty text for synthesis")

// Error is the failure every Synthesizer returns. Cause is decided where the
// failure happens so callers never inspect provider-specific details.
type Error struct {
	Cause      Cause
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tts (%s, status %d): %v", e.Cause, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tts (%s): %v", e.Cause, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CauseFromStatus maps a provider HTTP status to a Cause.
func CauseFromStatus(status int) Cause {
	if status == 401 || status == 403 {
		return CauseAuth
	}
	return CauseGeneric
}

// CauseOf returns the cause carried by err, or CauseGeneric for foreign errors.
func CauseOf(err error) Cause {
	var e *Error
	if errors.As(err, &e) {
		return e.Cause
	}
	return CauseGeneric
}
