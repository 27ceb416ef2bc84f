package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// DefaultSampleRate is the rate voice-activity detectors emit segments at.
const DefaultSampleRate = 16000

// Segment is one finished utterance from a voice-activity detector:
// mono float samples in [-1, 1].
type Segment struct {
	Samples    []float32
	SampleRate int
}

// Listen submits every segment received on segments as its own audio
// request. Segments are never merged. Any playing reply is stopped as soon
// as the user starts a new utterance. Listen returns when segments is closed
// or ctx is done, after in-flight submissions settle.
func (s *Session) Listen(ctx context.Context, segments <-chan Segment) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			if s.player != nil {
				s.player.Stop()
			}

			wavData, err := EncodeWAV(seg.Samples, seg.SampleRate)
			if err != nil {
				slog.Error("encoding speech segment", "error", err)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Submit(ctx, AudioInput(wavData))
			}()
		}
	}
}

// EncodeWAV renders float samples as a 16-bit mono PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		v = float32(math.Max(-1, math.Min(1, float64(v))))
		data[i] = int(v * math.MaxInt16)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	out := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	wavData, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return wavData, nil
}
