package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nadzzz/autoconnect/internal/message"
)

const (
	defaultMaxUpload = 25 << 20 // 25 MB
	formMemory       = 8 << 20
)

// parseChatForm validates a multipart chat submission. The "input" field is
// either a file (audio) or a non-empty text value; every "message" field must
// decode to a user or assistant turn. Any violation is a *message.ValidationError.
func parseChatForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*message.Request, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &message.ValidationError{Field: "body", Err: message.ErrTooLarge}
		}
		return nil, &message.ValidationError{Field: "body", Err: err}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := &message.Request{}

	if files := r.MultipartForm.File["input"]; len(files) > 0 {
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			return nil, &message.ValidationError{Field: "input", Err: err}
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, &message.ValidationError{Field: "input", Err: fmt.Errorf("reading audio: %w", err)}
		}
		req.IsAudio = true
		req.Audio = data
		req.AudioName = fh.Filename
		req.ContentType = fh.Header.Get("Content-Type")
	} else {
		values := r.MultipartForm.Value["input"]
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return nil, &message.ValidationError{Field: "input", Err: message.ErrMissingInput}
		}
		req.Text = values[0]
	}

	for _, raw := range r.MultipartForm.Value["message"] {
		turn, err := message.DecodeTurn(raw)
		if err != nil {
			return nil, err
		}
		req.History = append(req.History, turn)
	}

	return req, nil
}

// requestID prefers the edge's request id header and falls back to a UUID.
func requestID(r *http.Request, header string) string {
	if header != "" {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
