// Autoconnect-chat is a terminal front end for the autoconnect server.
//
// Each line typed is sent as text. A line of the form "@path/to/file.wav"
// sends that file as recorded speech. Replies are printed with their round
// trip latency and their audio is either written to a directory or played
// through an external command.
//
// Usage:
//
//	autoconnect-chat --server http://localhost:8080/api --audio-dir ./replies
//	autoconnect-chat --player "ffplay -nodisp -autoexit -loglevel quiet"
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nadzzz/autoconnect/internal/client"
	"github.com/nadzzz/autoconnect/internal/config"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("AUTOCONNECT_SERVER", "http://localhost:8080/api"), "chat endpoint URL")
	audioDir := flag.String("audio-dir", "replies", "directory reply audio is written to")
	playerCmd := flag.String("player", "", "external command used to play replies (overrides --audio-dir)")
	logLevel := flag.String("log-level", "warn", "debug, info, warn, error")
	flag.Parse()

	config.SetupLogging(config.LoggingConfig{Level: *logLevel, Format: "text"})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var player client.Player = &client.FilePlayer{Dir: *audioDir}
	if *playerCmd != "" {
		player = client.NewExecPlayer(*playerCmd)
	}
	defer player.Stop()

	session := client.NewSession(*server,
		client.WithPlayer(player),
		client.WithNotifier(func(n client.Notice) {
			fmt.Fprintf(os.Stderr, "! %s\n", n.Message)
		}),
	)

	fmt.Println("Auto Connect AI. Type a message, or @file.wav to send speech. Ctrl-D to quit.")
	lines := readLines(os.Stdin)
	for {
		fmt.Print("> ")
		line, ok := nextLine(ctx, lines)
		if !ok {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		in := client.TextInput(line)
		if path, ok := strings.CutPrefix(line, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
				continue
			}
			in = client.AudioInput(data)
		}

		if _, err := session.Submit(ctx, in); err != nil {
			slog.Debug("submit failed", "error", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		history := session.History()
		last := history[len(history)-1]
		fmt.Printf("%s  (%d ms)\n", last.Content, last.Latency)
	}
}

// readLines scans r on its own goroutine so the prompt can also wait for a
// signal. The channel is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// nextLine waits for the next line. It reports false at EOF or once ctx is
// done; a line read after cancellation is dropped.
func nextLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		if !ok || ctx.Err() != nil {
			return "", false
		}
		return line, true
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
