// Package client is the conversational front end of autoconnect.
//
// A Session posts text or recorded speech to the chat endpoint together with
// the conversation so far, appends the exchange to its history when the reply
// arrives, and hands the reply audio to a Player. Failures surface as Notices
// and never touch the history.
//
// Submissions are not serialized: several may be in flight at once and each
// exchange is appended when its own reply arrives, so history order follows
// arrival order rather than submission order.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/autoconnect/internal/message"
)

// State is the submission lifecycle: idle → pending → (succeeded | failed) → idle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CanTransition reports whether from → to is a legal lifecycle step.
// A pending session may accept further submissions, so pending → pending is legal.
func CanTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StatePending
	case StatePending:
		return to == StatePending || to == StateSucceeded || to == StateFailed
	case StateSucceeded, StateFailed:
		return to == StateIdle || to == StatePending
	}
	return false
}

// NoticeKind classifies user-visible notices.
type NoticeKind string

const (
	NoticeRateLimited    NoticeKind = "rate_limited"
	NoticeRequestFailed  NoticeKind = "request_failed"
	NoticePlaybackFailed NoticeKind = "playback_failed"
)

// Notice is a transient message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// ErrNoReply is returned when the server answered 200 without reply text.
var ErrNoReply = errors.New("response has no text")

// StatusError is returned when the server answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the server rejected the request with 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Input is one submission: either typed text or a recorded audio file.
type Input struct {
	Text     string
	Audio    []byte
	Filename string
}

// TextInput wraps typed text.
func TextInput(text string) Input { return Input{Text: text} }

// AudioInput wraps a recorded utterance, uploaded as audio.wav.
func AudioInput(wav []byte) Input { return Input{Audio: wav, Filename: "audio.wav"} }

// IsAudio reports whether the input carries audio.
func (in Input) IsAudio() bool { return in.Audio != nil }

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the HTTP client used for submissions.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// WithPlayer sets the audio player. Without one, replies are not played.
func WithPlayer(p Player) Option {
	return func(s *Session) { s.player = p }
}

// WithNotifier sets the callback that receives user-visible notices.
func WithNotifier(fn func(Notice)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithStateListener sets a callback invoked on every state transition.
// It runs with the session lock held and must not call back into the session.
func WithStateListener(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session holds one conversation with the server.
type Session struct {
	endpoint string
	http     *http.Client
	player   Player
	notify   func(Notice)
	onState  func(State)
	now      func() time.Time

	mu       sync.Mutex
	state    State
	inflight int
	history  []message.Turn
}

// NewSession creates a session that posts to endpoint (e.g. http://localhost:8080/api).
func NewSession(endpoint string, opts ...Option) *Session {
	s := &Session{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 2 * time.Minute},
		notify:   func(Notice) {},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation so far.
func (s *Session) History() []message.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]message.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// transition moves to the next state. Callers hold s.mu.
func (s *Session) transition(to State) {
	if !CanTransition(s.state, to) {
		slog.Warn("illegal client state transition", "from", s.state, "to", to)
		return
	}
	s.state = to
	if s.onState != nil {
		s.onState(to)
	}
}

// settle records the outcome of one submission and returns to idle, or
// stays pending while other submissions are still in flight. Callers hold s.mu.
func (s *Session) settle(outcome State) {
	s.inflight--
	s.transition(outcome)
	if s.inflight > 0 {
		s.transition(StatePending)
	} else {
		s.transition(StateIdle)
	}
}

// Submit posts in together with the current history. On success the user
// and assistant turns are appended and the reply audio is played.
func (s *Session) Submit(ctx context.Context, in Input) (*message.Response, error) {
	s.mu.Lock()
	history := make([]message.Turn, len(s.history))
	copy(history, s.history)
	s.inflight++
	s.transition(StatePending)
	s.mu.Unlock()

	submittedAt := s.now()
	resp, err := s.post(ctx, in, history)
	if err != nil {
		s.mu.Lock()
		s.settle(StateFailed)
		s.mu.Unlock()
		s.notifyFailure(err)
		return nil, err
	}
	latency := s.now().Sub(submittedAt)

	userContent := in.Text
	if in.IsAudio() {
		userContent = message.AudioPlaceholder
	}

	s.mu.Lock()
	s.history = append(s.history,
		message.Turn{Role: message.RoleUser, Content: userContent},
		message.Turn{Role: message.RoleAssistant, Content: resp.Text, Latency: latency.Milliseconds()},
	)
	s.settle(StateSucceeded)
	s.mu.Unlock()

	s.play(ctx, resp)
	return resp, nil
}

func (s *Session) post(ctx context.Context, in Input, history []message.Turn) (*message.Response, error) {
	body, contentType, err := encodeForm(in, history)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var resp message.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Text == "" {
		return nil, ErrNoReply
	}
	return &resp, nil
}

// encodeForm writes the multipart body the chat endpoint expects.
func encodeForm(in Input, history []message.Turn) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if in.IsAudio() {
		name := in.Filename
		if name == "" {
			name = "audio.wav"
		}
		part, err := w.CreateFormFile("input", name)
		if err != nil {
			return nil, "", fmt.Errorf("creating form file: %w", err)
		}
		if _, err := part.Write(in.Audio); err != nil {
			return nil, "", fmt.Errorf("writing audio: %w", err)
		}
	} else if err := w.WriteField("input", in.Text); err != nil {
		return nil, "", fmt.Errorf("writing input: %w", err)
	}

	for _, turn := range history {
		encoded, err := json.Marshal(turn)
		if err != nil {
			return nil, "", fmt.Errorf("encoding history: %w", err)
		}
		if err := w.WriteField("message", string(encoded)); err != nil {
			return nil, "", fmt.Errorf("writing history: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (s *Session) notifyFailure(err error) {
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.RateLimited():
		s.notify(Notice{Kind: NoticeRateLimited, Message: "Too many requests. Please try again later.", Err: err})
	case errors.As(err, &se):
		msg := se.Body
		if msg == "" {
			msg = "An error occurred."
		}
		s.notify(Notice{Kind: NoticeRequestFailed, Message: msg, Err: err})
	default:
		s.notify(Notice{Kind: NoticeRequestFailed, Message: "An error occurred while submitting your request.", Err: err})
	}
}

// play hands the reply audio to the player. A reply without audio counts as
// a playback failure so the user learns speech is unavailable.
func (s *Session) play(ctx context.Context, resp *message.Response) {
	if s.player == nil {
		return
	}

	err := func() error {
		if !resp.HasAudio() {
			return errors.New("audio buffer is missing")
		}
		audio, err := resp.AudioBytes()
		if err != nil {
			return fmt.Errorf("decoding audio: %w", err)
		}
		if _, err := s.player.Play(ctx, audio); err != nil {
			return fmt.Errorf("playing audio: %w", err)
		}
		return nil
	}()
	if err != nil {
		slog.Warn("error playing audio", "error", err)
		s.notify(Notice{
			Kind:    NoticePlaybackFailed,
			Message: "Error generating voice; TTS API limit likely.",
			Err:     err,
		})
	}
}
