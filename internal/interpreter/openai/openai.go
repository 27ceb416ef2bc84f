// Package openai implements the Interpreter interface against any
// OpenAI-compatible API.
//
// It uses the Audio Transcription endpoint (whisper-large-v3 on Groq) for
// speech-to-text and the Chat Completions endpoint (llama3-8b-8192 on Groq)
// for the assistant reply. Both calls are single-shot: no retries, no streaming.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/autoconnect/internal/config"
	"github.com/nadzzz/autoconnect/internal/interpreter"
	"github.com/nadzzz/autoconnect/internal/message"
)

// ErrNoChoices is returned when the completion response carries no choices.
var ErrNoChoices = errors.New("no choices returned from chat API")

// Interpreter uses an OpenAI-compatible API for transcription and completion.
// It is safe for concurrent use; its fields are read-only after New.
type Interpreter struct {
	client             *goopenai.Client
	transcriptionModel string
	completionModel    string
}

// New creates a new interpreter from config.
func New(cfg config.InterpreterConfig) *Interpreter {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Interpreter{
		client:             goopenai.NewClientWithConfig(clientCfg),
		transcriptionModel: cfg.TranscriptionModel,
		completionModel:    cfg.CompletionModel,
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// Transcribe sends audio to the transcription endpoint.
func (i *Interpreter) Transcribe(ctx context.Context, audio interpreter.Audio) (string, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "audio" + extFromContentType(audio.ContentType)
	}

	resp, err := i.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    i.transcriptionModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio.Data),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	slog.Debug("transcription complete", "text_length", len(resp.Text), "model", i.transcriptionModel)
	return resp.Text, nil
}

// Complete sends the composed conversation to the chat completions endpoint
// and returns the first choice's message content.
func (i *Interpreter) Complete(ctx context.Context, messages []message.Turn) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    i.completionModel,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := i.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("completion complete", "text_length", len(content), "model", i.completionModel)
	return content, nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}
