// Package transport defines the interface for pluggable request transports.
//
// A transport accepts chat submissions from clients, turns them into
// validated message.Request values, and hands them to the dispatcher. The
// dispatcher doesn't care how requests arrive; it only works with Handlers.
package transport

import (
	"context"

	"github.com/nadzzz/autoconnect/internal/message"
)

// Handler processes one chat request and returns the assembled response.
type Handler func(ctx context.Context, req *message.Request) (*message.Response, error)

// SpeakFunc synthesizes text into audio bytes.
type SpeakFunc func(ctx context.Context, text string) ([]byte, error)

// Handlers bundles the operations a transport exposes.
type Handlers struct {
	Chat  Handler
	Speak SpeakFunc
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http").
	Name() string

	// Listen starts accepting requests and routes them to handlers.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handlers Handlers) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
