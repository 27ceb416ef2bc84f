package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadLines(t *testing.T) {
	lines := readLines(strings.NewReader("hello\n@reply.wav\n"))

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	if len(got) != 2 || got[0] != "hello" || got[1] != "@reply.wav" {
		t.Errorf("lines = %q", got)
	}
}

func TestNextLine(t *testing.T) {
	t.Run("line", func(t *testing.T) {
		lines := make(chan string, 1)
		lines <- "hello"
		if line, ok := nextLine(context.Background(), lines); !ok || line != "hello" {
			t.Errorf("got %q, %v", line, ok)
		}
	})

	t.Run("eof", func(t *testing.T) {
		lines := make(chan string)
		close(lines)
		if _, ok := nextLine(context.Background(), lines); ok {
			t.Error("expected false at EOF")
		}
	})

	t.Run("interrupt while waiting", func(t *testing.T) {
		// Stdin that never produces a line.
		pr, pw := io.Pipe()
		defer pw.Close()
		lines := readLines(pr)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		done := make(chan bool)
		go func() {
			_, ok := nextLine(ctx, lines)
			done <- ok
		}()

		select {
		case ok := <-done:
			if ok {
				t.Error("expected false after interrupt")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("prompt did not return on interrupt")
		}
	})

	t.Run("line pending after interrupt is dropped", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for range 100 {
			lines := make(chan string, 1)
			lines <- "late"
			if _, ok := nextLine(ctx, lines); ok {
				t.Fatal("line submitted after interrupt")
			}
		}
	})
}
