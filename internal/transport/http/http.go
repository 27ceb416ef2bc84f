// Package http implements the HTTP transport for autoconnect.
//
// It exposes the chat pipeline as a multipart POST endpoint and the
// standalone synthesis endpoint as a JSON POST, both behind CORS and a
// per-IP rate limiter. Generated OpenAPI docs are served under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/autoconnect/internal/config"
	"github.com/nadzzz/autoconnect/internal/dispatch"
	"github.com/nadzzz/autoconnect/internal/prompt"
	"github.com/nadzzz/autoconnect/internal/transport"

	_ "github.com/nadzzz/autoconnect/internal/docs" // registers the OpenAPI spec
)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	cfg    config.HTTPConfig
	edge   config.EdgeConfig
	now    func() time.Time
	server *http.Server
}

// New creates a new HTTP transport.
func New(cfg config.HTTPConfig, edge config.EdgeConfig) *Transport {
	return &Transport{cfg: cfg, edge: edge, now: time.Now}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Router builds the request router. It is exported so tests can drive the
// transport without a listening socket.
func (t *Transport) Router(h transport.Handlers) http.Handler {
	r := chi.NewRouter()
	if t.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: t.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Group(func(api chi.Router) {
		if rl := t.cfg.RateLimit; rl.Requests > 0 && rl.Window > 0 {
			api.Use(httprate.LimitByIP(rl.Requests, rl.Window))
		}

		// POST /api: multipart text or audio, returns {text, audioBuffer}.
		api.Post("/api", func(w http.ResponseWriter, r *http.Request) {
			t.handleChat(w, r, h.Chat)
		})

		// POST /api/audio: JSON {text}, returns raw audio.
		api.Post("/api/audio", func(w http.ResponseWriter, r *http.Request) {
			t.handleSpeak(w, r, h.Speak)
		})
	})

	// Swagger UI: serves the registered OpenAPI docs.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// Listen starts the HTTP server and routes incoming requests to the handlers.
func (t *Transport) Listen(ctx context.Context, h transport.Handlers) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.cfg.Port),
		Handler:           t.Router(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.cfg.Port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleChat processes a POST /api request.
//
// @Summary     Chat with the voice assistant
// @Description Accepts a multipart form with an "input" field (text, or an audio file) and zero or more
// @Description "message" fields, each a JSON-encoded prior turn {role, content}. Audio is transcribed,
// @Description the conversation is completed by the language model, and the reply is synthesized to speech.
// @Description audioBuffer is null when synthesis failed.
// @Tags        chat
// @Accept      mpfd
// @Produce     json
// @Param       input    formData  string  true   "Text input, or an audio file (e.g. audio.wav)"
// @Param       message  formData  string  false  "JSON-encoded prior turn; repeatable"
// @Success     200  {object}  message.Response  "Reply text and optional base64 audio"
// @Failure     400  {string}  string  "Invalid request or invalid audio"
// @Failure     429  {string}  string  "Too many requests"
// @Failure     500  {string}  string  "Internal processing error"
// @Router      /api [post]
func (t *Transport) handleChat(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	received := t.now()
	id := requestID(r, t.edge.RequestIDHeader)
	w.Header().Set("X-Request-Id", id)

	req, err := parseChatForm(w, r, t.cfg.MaxUploadBytes)
	if err != nil {
		slog.Info("rejected chat request", "request_id", id, "error", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	req.ID = id
	req.ReceivedAt = received
	req.Caller = prompt.CallerFromHeaders(r.Header, t.edge, received)

	resp, err := handler(r.Context(), req)
	switch {
	case errors.Is(err, dispatch.ErrInvalidAudio):
		http.Error(w, "Invalid audio", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("chat failed", "request_id", id, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	body, err := resp.Marshal()
	if err != nil {
		slog.Error("encoding response", "request_id", id, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

type speakRequest struct {
	Text string `json:"text"`
}

// handleSpeak processes a POST /api/audio request.
//
// @Summary     Synthesize speech
// @Description Converts text to speech with the configured voice and returns the raw audio bytes.
// @Tags        audio
// @Accept      json
// @Produce     audio/wav
// @Param       request  body      speakRequest  true  "Text to speak"
// @Success     200  {file}    binary  "Audio bytes"
// @Failure     400  {string}  string  "Invalid request"
// @Failure     500  {string}  string  "Synthesis failed"
// @Router      /api/audio [post]
func (t *Transport) handleSpeak(w http.ResponseWriter, r *http.Request, speak transport.SpeakFunc) {
	id := requestID(r, t.edge.RequestIDHeader)
	w.Header().Set("X-Request-Id", id)

	var req speakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	audio, err := speak(r.Context(), req.Text)
	if err != nil {
		slog.Error("error generating audio", "request_id", id, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(audio)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
