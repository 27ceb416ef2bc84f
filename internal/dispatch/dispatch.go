// Package dispatch implements the chat pipeline.
//
// The dispatcher receives a validated request from the transport, resolves
// the user's words (transcribing audio if needed), asks the language model
// for a reply, and speaks the reply. The stages run strictly in sequence
// because each consumes the previous one's output. Transcription and
// completion failures end the request; synthesis failures only cost the audio.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/autoconnect/internal/interpreter"
	"github.com/nadzzz/autoconnect/internal/message"
	"github.com/nadzzz/autoconnect/internal/metrics"
	"github.com/nadzzz/autoconnect/internal/prompt"
	"github.com/nadzzz/autoconnect/internal/tts"
)

var (
	// ErrInvalidAudio means the audio was empty, could not be transcribed,
	// or transcribed to nothing. The language model is not called.
	ErrInvalidAudio = errors.New("invalid audio")

	// ErrCompletion wraps any failure of the language model call.
	ErrCompletion = errors.New("completion failed")
)

// Dispatcher is the pipeline engine. It holds only read-only handles and is
// safe for concurrent use.
type Dispatcher struct {
	interpreter interpreter.Interpreter
	synthesizer tts.Synthesizer // nil disables speech
	metrics     *metrics.Metrics
}

// New creates a new Dispatcher. synthesizer and m may be nil.
func New(interp interpreter.Interpreter, synthesizer tts.Synthesizer, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		interpreter: interp,
		synthesizer: synthesizer,
		metrics:     m,
	}
}

// Handle runs one request through the pipeline.
//
// It returns ErrInvalidAudio (HTTP 400) or an error wrapping ErrCompletion
// (HTTP 500). On success the response always has text; its audio is nil
// when synthesis failed.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Response, error) {
	start := time.Now()
	logger := slog.With("request_id", req.ID)
	logger.Info("dispatch started", "audio", req.IsAudio, "history", len(req.History))

	// Step 1: Resolve the transcript.
	transcript := req.Text
	if req.IsAudio {
		text, ok := d.transcribe(ctx, logger, req)
		if !ok {
			d.metrics.CountOutcome("invalid_audio")
			return nil, ErrInvalidAudio
		}
		transcript = text
	}

	// Step 2: Compose and complete.
	messages := prompt.Compose(req.Caller, req.History, transcript)

	completionStart := time.Now()
	reply, err := d.interpreter.Complete(ctx, messages)
	elapsed := time.Since(completionStart)
	d.metrics.ObserveStage(metrics.StageComplete, elapsed, err)
	if err != nil {
		d.metrics.CountOutcome("completion_failed")
		logger.Error("completion failed", "error", err, "duration", elapsed)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	logger.Info("completion complete", "text_length", len(reply), "duration", elapsed)

	// Step 3: Speak the reply. Failure degrades to text-only.
	audio := d.synthesize(ctx, logger, reply)

	// Step 4: Assemble.
	resp := message.NewResponse(reply, audio)
	if resp.HasAudio() {
		d.metrics.CountOutcome("ok")
	} else {
		d.metrics.CountOutcome("text_only")
	}
	logger.Info("dispatch complete", "duration", time.Since(start), "audio", resp.HasAudio())
	return resp, nil
}

// transcribe returns the trimmed transcript, or false when the audio is
// unusable. A single failed attempt is final.
func (d *Dispatcher) transcribe(ctx context.Context, logger *slog.Logger, req *message.Request) (string, bool) {
	if len(req.Audio) == 0 {
		logger.Warn("empty audio upload")
		return "", false
	}

	logger.Debug("transcribing audio", "filename", req.AudioName, "bytes", len(req.Audio))
	start := time.Now()
	text, err := d.interpreter.Transcribe(ctx, interpreter.Audio{
		Data:        req.Audio,
		Filename:    req.AudioName,
		ContentType: req.ContentType,
	})
	elapsed := time.Since(start)
	d.metrics.ObserveStage(metrics.StageTranscribe, elapsed, err)
	if err != nil {
		logger.Warn("transcription failed", "error", err, "duration", elapsed)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		logger.Warn("transcription empty", "duration", elapsed)
		return "", false
	}

	logger.Info("transcription complete", "text_length", len(text), "duration", elapsed)
	return text, true
}

// synthesize returns the reply audio, or nil if speech is disabled or failed.
func (d *Dispatcher) synthesize(ctx context.Context, logger *slog.Logger, text string) []byte {
	if d.synthesizer == nil {
		return nil
	}
	audio, err := Speak(ctx, d.synthesizer, d.metrics, text)
	if err != nil {
		cause := tts.CauseOf(err)
		logger.Warn("TTS synthesis failed, continuing without audio",
			"cause", cause, "hint", cause.Hint(), "error", err)
		return nil
	}
	logger.Info("TTS synthesis complete", "audio_bytes", len(audio))
	return audio
}

// Speak synthesizes text once and records the stage latency. It is shared by
// the pipeline and the standalone synthesis endpoint.
func Speak(ctx context.Context, s tts.Synthesizer, m *metrics.Metrics, text string) ([]byte, error) {
	start := time.Now()
	res, err := s.Synthesize(ctx, text)
	m.ObserveStage(metrics.StageSynthesize, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res.Audio, nil
}
