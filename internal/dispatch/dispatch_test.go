package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/nadzzz/autoconnect/internal/interpreter"
	"github.com/nadzzz/autoconnect/internal/message"
	"github.com/nadzzz/autoconnect/internal/metrics"
	"github.com/nadzzz/autoconnect/internal/tts"
)

type mockInterpreter struct {
	transcript    string
	transcribeErr error
	reply         string
	completeErr   error

	transcribeCalls int
	completeCalls   int
	lastAudio       interpreter.Audio
	lastMessages    []message.Turn
}

func (m *mockInterpreter) Name() string { return "mock" }

func (m *mockInterpreter) Transcribe(_ context.Context, audio interpreter.Audio) (string, error) {
	m.transcribeCalls++
	m.lastAudio = audio
	return m.transcript, m.transcribeErr
}

func (m *mockInterpreter) Complete(_ context.Context, messages []message.Turn) (string, error) {
	m.completeCalls++
	m.lastMessages = messages
	return m.reply, m.completeErr
}

func (m *mockInterpreter) Close() error { return nil }

type mockSynthesizer struct {
	audio    []byte
	err      error
	calls    int
	lastText string
}

func (m *mockSynthesizer) Synthesize(_ context.Context, text string) (*tts.SynthesizeResult, error) {
	m.calls++
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return &tts.SynthesizeResult{Audio: m.audio, ContentType: "audio/mpeg", Chunks: 1}, nil
}

func (m *mockSynthesizer) Close() error { return nil }

func TestHandle_TextWithAudio(t *testing.T) {
	interp := &mockInterpreter{reply: "Hi there"}
	synth := &mockSynthesizer{audio: []byte("mp3-bytes")}
	d := New(interp, synth, metrics.New())

	resp, err := d.Handle(context.Background(), &message.Request{ID: "r1", Text: "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if interp.transcribeCalls != 0 {
		t.Errorf("transcribe called %d times for text input", interp.transcribeCalls)
	}
	if len(interp.lastMessages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(interp.lastMessages))
	}
	if interp.lastMessages[0].Role != message.RoleSystem {
		t.Errorf("first message role = %s", interp.lastMessages[0].Role)
	}
	if last := interp.lastMessages[1]; last.Role != message.RoleUser || last.Content != "Hello" {
		t.Errorf("last message = %+v", last)
	}

	if synth.lastText != "Hi there" {
		t.Errorf("synthesized %q, want reply text", synth.lastText)
	}
	if resp.Text != "Hi there" {
		t.Errorf("text = %q", resp.Text)
	}
	want := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	if resp.AudioBuffer == nil || *resp.AudioBuffer != want {
		t.Errorf("audioBuffer = %v, want %q", resp.AudioBuffer, want)
	}
}

func TestHandle_SynthesisFailureDegradesToText(t *testing.T) {
	for _, cause := range []tts.Cause{tts.CauseAuth, tts.CauseGeneric} {
		t.Run(string(cause), func(t *testing.T) {
			interp := &mockInterpreter{reply: "Hi there"}
			synth := &mockSynthesizer{err: &tts.Error{Cause: cause, StatusCode: 401, Err: errors.New("nope")}}
			d := New(interp, synth, nil)

			resp, err := d.Handle(context.Background(), &message.Request{Text: "Hello"})
			if err != nil {
				t.Fatalf("synthesis failure must not fail the request: %v", err)
			}
			if resp.Text != "Hi there" {
				t.Errorf("text = %q", resp.Text)
			}
			if resp.AudioBuffer != nil {
				t.Errorf("audioBuffer = %q, want nil", *resp.AudioBuffer)
			}
			if synth.calls != 1 {
				t.Errorf("synthesize called %d times, want exactly 1", synth.calls)
			}
		})
	}
}

func TestHandle_NoSynthesizer(t *testing.T) {
	d := New(&mockInterpreter{reply: "ok"}, nil, nil)
	resp, err := d.Handle(context.Background(), &message.Request{Text: "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.HasAudio() {
		t.Error("expected no audio without a synthesizer")
	}
}

func TestHandle_Audio(t *testing.T) {
	t.Run("transcript used as user message", func(t *testing.T) {
		interp := &mockInterpreter{transcript: "  what time is it \n", reply: "Noon"}
		d := New(interp, &mockSynthesizer{audio: []byte{1}}, nil)

		req := &message.Request{
			IsAudio:     true,
			Audio:       []byte("RIFF...."),
			AudioName:   "audio.wav",
			ContentType: "audio/wav",
		}
		if _, err := d.Handle(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if interp.lastAudio.Filename != "audio.wav" || string(interp.lastAudio.Data) != "RIFF...." {
			t.Errorf("audio passed = %+v", interp.lastAudio)
		}
		last := interp.lastMessages[len(interp.lastMessages)-1]
		if last.Content != "what time is it" {
			t.Errorf("user message = %q, want trimmed transcript", last.Content)
		}
	})

	tests := []struct {
		name            string
		audio           []byte
		transcript      string
		transcribeErr   error
		wantTranscribes int
	}{
		{name: "empty upload", audio: []byte{}, wantTranscribes: 0},
		{name: "empty transcript", audio: []byte("x"), transcript: "", wantTranscribes: 1},
		{name: "whitespace transcript", audio: []byte("x"), transcript: "   ", wantTranscribes: 1},
		{name: "transcription error", audio: []byte("x"), transcribeErr: errors.New("boom"), wantTranscribes: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := &mockInterpreter{transcript: tt.transcript, transcribeErr: tt.transcribeErr, reply: "unused"}
			synth := &mockSynthesizer{audio: []byte{1}}
			d := New(interp, synth, metrics.New())

			_, err := d.Handle(context.Background(), &message.Request{IsAudio: true, Audio: tt.audio})
			if !errors.Is(err, ErrInvalidAudio) {
				t.Fatalf("err = %v, want ErrInvalidAudio", err)
			}
			if interp.transcribeCalls != tt.wantTranscribes {
				t.Errorf("transcribe calls = %d, want %d", interp.transcribeCalls, tt.wantTranscribes)
			}
			if interp.completeCalls != 0 {
				t.Errorf("completion called %d times for invalid audio", interp.completeCalls)
			}
			if synth.calls != 0 {
				t.Errorf("synthesis called %d times for invalid audio", synth.calls)
			}
		})
	}
}

func TestHandle_CompletionFailure(t *testing.T) {
	cause := errors.New("upstream 503")
	interp := &mockInterpreter{completeErr: cause}
	synth := &mockSynthesizer{audio: []byte{1}}
	d := New(interp, synth, nil)

	resp, err := d.Handle(context.Background(), &message.Request{Text: "Hello"})
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}
	if !errors.Is(err, ErrCompletion) {
		t.Errorf("err = %v, want ErrCompletion", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want wrapped cause", err)
	}
	if synth.calls != 0 {
		t.Errorf("synthesis called %d times after completion failure", synth.calls)
	}
}

func TestHandle_HistoryForwardedInOrder(t *testing.T) {
	interp := &mockInterpreter{reply: "3"}
	d := New(interp, nil, nil)

	history := []message.Turn{
		{Role: message.RoleUser, Content: "1"},
		{Role: message.RoleAssistant, Content: "2", Latency: 150},
	}
	if _, err := d.Handle(context.Background(), &message.Request{Text: "count", History: history}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := interp.lastMessages
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	if got[1] != history[0] || got[2] != history[1] {
		t.Errorf("history reordered: %+v", got[1:3])
	}
	if got[3].Content != "count" {
		t.Errorf("last message = %+v", got[3])
	}
}

func TestSpeak(t *testing.T) {
	synth := &mockSynthesizer{audio: []byte("wav")}
	audio, err := Speak(context.Background(), synth, nil, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "wav" || synth.lastText != "hello" {
		t.Errorf("audio = %q, text = %q", audio, synth.lastText)
	}

	synth = &mockSynthesizer{err: &tts.Error{Cause: tts.CauseGeneric, Err: errors.New("quota")}}
	if _, err := Speak(context.Background(), synth, metrics.New(), "hello"); err == nil {
		t.Error("expected error")
	}
}
