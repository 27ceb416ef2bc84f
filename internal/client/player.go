package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Player plays reply audio.
//
// Play starts playback and returns a channel that is closed exactly once,
// when playback finishes on its own. Stop ends playback early; the channel
// of a stopped playback is never closed.
type Player interface {
	Play(ctx context.Context, audio []byte) (<-chan struct{}, error)
	Stop()
}

// FilePlayer "plays" audio by writing each reply to a numbered file in Dir.
type FilePlayer struct {
	Dir string
	Ext string // defaults to ".mp3"

	n atomic.Int64
}

// Play writes audio to the next file and reports completion immediately.
func (p *FilePlayer) Play(_ context.Context, audio []byte) (<-chan struct{}, error) {
	ext := p.Ext
	if ext == "" {
		ext = ".mp3"
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(p.Dir, fmt.Sprintf("reply-%03d%s", p.n.Add(1), ext))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, err
	}
	slog.Debug("reply audio written", "path", path, "bytes", len(audio))

	done := make(chan struct{})
	close(done)
	return done, nil
}

// Stop is a no-op; files are written synchronously.
func (p *FilePlayer) Stop() {}

// ExecPlayer plays audio through an external command such as
// "ffplay -nodisp -autoexit -loglevel quiet". The audio is written to a
// temporary file whose path is appended as the last argument.
type ExecPlayer struct {
	Command []string

	mu      sync.Mutex
	current *playback
}

type playback struct {
	cmd     *exec.Cmd
	stopped atomic.Bool
}

// NewExecPlayer parses a command line into an ExecPlayer.
func NewExecPlayer(command string) *ExecPlayer {
	return &ExecPlayer{Command: strings.Fields(command)}
}

// Play stops any current playback and starts the command on audio.
func (p *ExecPlayer) Play(ctx context.Context, audio []byte) (<-chan struct{}, error) {
	if len(p.Command) == 0 {
		return nil, fmt.Errorf("no player command configured")
	}
	p.Stop()

	f, err := os.CreateTemp("", "autoconnect-reply-*")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	f.Close()

	args := append(append([]string{}, p.Command[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("starting %s: %w", p.Command[0], err)
	}

	pb := &playback{cmd: cmd}
	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		os.Remove(f.Name())

		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()

		if pb.stopped.Load() {
			return
		}
		if err != nil {
			slog.Warn("player exited with error", "error", err)
		}
		close(done)
	}()
	return done, nil
}

// Stop kills the current playback, if any, without signalling completion.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb == nil {
		return
	}
	pb.stopped.Store(true)
	if pb.cmd.Process != nil {
		_ = pb.cmd.Process.Kill()
	}
}
