package message

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewResponse(t *testing.T) {
	t.Run("with audio", func(t *testing.T) {
		r := NewResponse("Hi there", []byte{0x49, 0x44, 0x33})
		if !r.HasAudio() {
			t.Fatal("expected audio")
		}
		if *r.AudioBuffer != "SUQz" {
			t.Errorf("audioBuffer = %q, want SUQz", *r.AudioBuffer)
		}
		got, err := r.AudioBytes()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, []byte{0x49, 0x44, 0x33}) {
			t.Errorf("decoded audio = %v", got)
		}
	})

	t.Run("nil and empty audio are null", func(t *testing.T) {
		for _, audio := range [][]byte{nil, {}} {
			r := NewResponse("Hi there", audio)
			body, err := r.Marshal()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(body) != `{"text":"Hi there","audioBuffer":null}` {
				t.Errorf("body = %s", body)
			}
		}
	})

	t.Run("assembly is deterministic", func(t *testing.T) {
		audio := []byte("some mp3 bytes")
		a, _ := NewResponse("Hello", audio).Marshal()
		b, _ := NewResponse("Hello", audio).Marshal()
		if !bytes.Equal(a, b) {
			t.Errorf("outputs differ:\n%s\n%s", a, b)
		}
	})
}

func TestDecodeTurn(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Turn
		wantErr error
	}{
		{name: "user", raw: `{"role":"user","content":"hello"}`, want: Turn{Role: RoleUser, Content: "hello"}},
		{name: "assistant with latency", raw: `{"role":"assistant","content":"hi","latency":420}`, want: Turn{Role: RoleAssistant, Content: "hi", Latency: 420}},
		{name: "fractional latency rounded", raw: `{"role":"assistant","content":"hi","latency":812.6}`, want: Turn{Role: RoleAssistant, Content: "hi", Latency: 813}},
		{name: "fractional latency rounded down", raw: `{"role":"assistant","content":"hi","latency":812.4}`, want: Turn{Role: RoleAssistant, Content: "hi", Latency: 812}},
		{name: "empty content allowed", raw: `{"role":"user","content":""}`, want: Turn{Role: RoleUser}},
		{name: "system role rejected", raw: `{"role":"system","content":"x"}`, wantErr: ErrInvalidRole},
		{name: "unknown role", raw: `{"role":"robot","content":"x"}`, wantErr: ErrInvalidRole},
		{name: "missing content", raw: `{"role":"user"}`, wantErr: ErrInvalidHistory},
		{name: "non-string content", raw: `{"role":"user","content":5}`, wantErr: ErrInvalidHistory},
		{name: "malformed json", raw: `{"role":`, wantErr: ErrInvalidHistory},
		{name: "negative latency", raw: `{"role":"assistant","content":"x","latency":-1}`, wantErr: ErrInvalidHistory},
		{name: "negative fractional latency", raw: `{"role":"assistant","content":"x","latency":-0.5}`, wantErr: ErrInvalidHistory},
		{name: "non-numeric latency", raw: `{"role":"assistant","content":"x","latency":"fast"}`, wantErr: ErrInvalidHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTurn(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if !IsValidation(err) {
					t.Errorf("expected a ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
