// Package elevenlabs implements the TTS Synthesizer using the ElevenLabs
// streaming text-to-speech API.
//
// The reply is requested from /text-to-speech/{voice_id}/stream with a fixed
// voice and model; the streamed body is consumed chunk by chunk and the chunks
// are concatenated into one buffer. Requests are never retried.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/autoconnect/internal/config"
	"github.com/nadzzz/autoconnect/internal/tts"
)

const chunkSize = 4096

// Synthesizer implements tts.Synthesizer against ElevenLabs.
// It is safe for concurrent use; its fields are read-only after New.
type Synthesizer struct {
	apiKey       string
	baseURL      string
	voiceID      string
	modelID      string
	outputFormat string
	client       *http.Client
}

// New creates a new ElevenLabs synthesizer from config.
func New(cfg config.TTSConfig) *Synthesizer {
	return &Synthesizer{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize streams speech for text and returns the concatenated audio.
// Every failure is a *tts.Error whose Cause separates credential problems
// from everything else.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &tts.Error{Cause: tts.CauseGeneric, Err: tts.ErrEmptyText}
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, ModelID: s.modelID})
	if err != nil {
		return nil, &tts.Error{Cause: tts.CauseGeneric, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s/stream", s.baseURL, url.PathEscape(s.voiceID))
	if s.outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(s.outputFormat)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &tts.Error{Cause: tts.CauseGeneric, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &tts.Error{Cause: tts.CauseGeneric, Err: fmt.Errorf("stream request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var (
		audio  bytes.Buffer
		chunks int
		buf    [chunkSize]byte
	)
	for {
		n, err := resp.Body.Read(buf[:])
		if n > 0 {
			audio.Write(buf[:n])
			chunks++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &tts.Error{Cause: tts.CauseGeneric, Err: fmt.Errorf("read stream: %w", err)}
		}
	}

	if audio.Len() == 0 {
		return nil, &tts.Error{Cause: tts.CauseGeneric, Err: errors.New("provider returned no audio")}
	}

	slog.Debug("elevenlabs synthesize", "chars", len(text), "bytes", audio.Len(), "chunks", chunks, "model", s.modelID)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &tts.SynthesizeResult{
		Audio:       audio.Bytes(),
		ContentType: contentType,
		Chunks:      chunks,
	}, nil
}

// Close releases idle connections.
func (s *Synthesizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// parseError reads an ElevenLabs error body and classifies it by status.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		msg = errResp.Detail.Message
	}

	return &tts.Error{
		Cause:      tts.CauseFromStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Err:        errors.New(msg),
	}
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
