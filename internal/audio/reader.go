// Package audio provides audio file I/O using gopxl/beep
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/wav"
)

// readChunk is the number of frames decoded per Stream call
const readChunk = 4096

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// ReadMono decodes a WAV file and returns its first channel as float64
// samples in [-1, 1]. Further channels are ignored.
func ReadMono(filename string) ([]float64, *Metadata, error) {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".wav" && ext != ".wave" {
		return nil, nil, fmt.Errorf("unsupported audio format %q: only WAV is supported", ext)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return nil, nil, errors.New("invalid sample rate in WAV header")
	}

	samples := make([]float64, 0, streamer.Len())
	buf := make([][2]float64, readChunk)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			samples = append(samples, buf[i][0])
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read samples: %w", err)
	}

	metadata := &Metadata{
		Duration:   float64(len(samples)) / float64(format.SampleRate),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		BitDepth:   format.Precision * 8,
		Frames:     len(samples),
	}

	return samples, metadata, nil
}
