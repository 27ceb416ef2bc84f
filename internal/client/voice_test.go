package client

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-audio/wav"

	"github.com/nadzzz/autoconnect/internal/message"
)

func TestEncodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 2, -2}

	data, err := EncodeWAV(samples, 0)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("missing RIFF header: % x", data[:min(12, len(data))])
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("decoder rejected the file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}

	if dec.SampleRate != DefaultSampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}

	want := []int{0, 16383, -16383, 32767, -32767, 32767, -32767}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], w)
		}
	}
}

func TestListen(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(_ context.Context, req *message.Request) (*message.Response, error) {
		calls.Add(1)
		if !req.IsAudio {
			t.Errorf("segment submitted as text")
		}
		return message.NewResponse("ok", []byte("mp3")), nil
	})

	player := &mockPlayer{}
	s := NewSession(srv.URL+"/api", WithPlayer(player))

	segments := make(chan Segment, 2)
	segments <- Segment{Samples: make([]float32, 1600), SampleRate: 16000}
	segments <- Segment{Samples: make([]float32, 800), SampleRate: 8000}
	close(segments)

	s.Listen(context.Background(), segments)

	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want one per segment", calls.Load())
	}
	history := s.History()
	if len(history) != 4 {
		t.Fatalf("history = %+v", history)
	}
	for _, i := range []int{0, 2} {
		if history[i].Content != message.AudioPlaceholder {
			t.Errorf("history[%d] = %q", i, history[i].Content)
		}
	}
	if player.stops < 2 {
		t.Errorf("player stopped %d times, want once per segment", player.stops)
	}
}

func TestListen_ContextCancelled(t *testing.T) {
	s := NewSession("http://127.0.0.1:0/api")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Listen(ctx, make(chan Segment))
		close(done)
	}()
	<-done
}
