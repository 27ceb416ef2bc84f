// Package message defines the core data types flowing through the chat pipeline.
package message

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AudioPlaceholder is the history text recorded for a turn the user spoke
// rather than typed.
const AudioPlaceholder = "Audio input received"

// Valid reports whether r may appear in client-supplied history.
// The system role is reserved for the server.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one entry of a conversation history. Turns are never mutated once
// appended; history is an ordered, chronological slice of them.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Latency is the client-measured round trip in milliseconds (assistant turns only).
	Latency int64 `json:"latency,omitempty"`
}

// Caller describes who is speaking, as reported by the hosting platform's edge.
type Caller struct {
	// Location is "city, region, country" or "unknown".
	Location string

	// Time is the caller's local wall-clock time, already formatted.
	Time string
}

// Request is a validated chat submission. It lives for one HTTP call.
type Request struct {
	// ID correlates log lines for this request.
	ID string

	// Text is the typed input. Empty when Audio is set.
	Text string

	// Audio is the uploaded recording. Nil for text input.
	Audio []byte

	// AudioName is the upload's filename (e.g. "audio.wav"); providers infer format from it.
	AudioName string

	// ContentType is the MIME type of Audio as declared by the client.
	ContentType string

	// IsAudio is true when the input field carried a file, even an empty one.
	IsAudio bool

	// History is the prior conversation in chronological order.
	History []Turn

	// Caller is the request metadata supplied by the edge.
	Caller Caller

	// ReceivedAt is when the server accepted the request.
	ReceivedAt time.Time
}

// Response is the single JSON payload returned by the chat pipeline.
// AudioBuffer is nil when synthesis failed; that is a valid outcome.
type Response struct {
	Text        string  `json:"text"`
	AudioBuffer *string `json:"audioBuffer"`
}

// NewResponse assembles a response from the reply text and optional audio.
// An empty or nil audio slice yields a null audioBuffer.
func NewResponse(text string, audio []byte) *Response {
	r := &Response{Text: text}
	if len(audio) > 0 {
		encoded := base64.StdEncoding.EncodeToString(audio)
		r.AudioBuffer = &encoded
	}
	return r
}

// HasAudio reports whether the response carries synthesized speech.
func (r *Response) HasAudio() bool {
	return r.AudioBuffer != nil
}

// AudioBytes decodes the base64 audio payload.
func (r *Response) AudioBytes() ([]byte, error) {
	if r.AudioBuffer == nil {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(*r.AudioBuffer)
}

// Marshal serializes the response. Identical inputs produce identical bytes.
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Validation failures. They are always wrapped in a *ValidationError.
var (
	ErrMissingInput   = errors.New("missing input")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidHistory = errors.New("invalid history entry")
	ErrTooLarge       = errors.New("request body too large")
)

// ValidationError reports a malformed submission. Callers answer it with
// HTTP 400 and do no further work.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DecodeTurn parses one JSON-encoded history entry. The role must be user or
// assistant and content must be present as a string. A fractional latency is
// rounded to whole milliseconds.
func DecodeTurn(raw string) (Turn, error) {
	var wire struct {
		Role    Role     `json:"role"`
		Content *string  `json:"content"`
		Latency *float64 `json:"latency"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Turn{}, &ValidationError{Field: "message", Err: fmt.Errorf("%w: %v", ErrInvalidHistory, err)}
	}
	if !wire.Role.Valid() {
		return Turn{}, &ValidationError{Field: "message", Err: fmt.Errorf("%w: %q", ErrInvalidRole, wire.Role)}
	}
	if wire.Content == nil {
		return Turn{}, &ValidationError{Field: "message", Err: fmt.Errorf("%w: content is required", ErrInvalidHistory)}
	}
	t := Turn{Role: wire.Role, Content: *wire.Content}
	if wire.Latency != nil {
		if *wire.Latency < 0 || *wire.Latency >= math.MaxInt64 {
			return Turn{}, &ValidationError{Field: "message", Err: fmt.Errorf("%w: latency out of range", ErrInvalidHistory)}
		}
		t.Latency = int64(math.Round(*wire.Latency))
	}
	return t, nil
}
