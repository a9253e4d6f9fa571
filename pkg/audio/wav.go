package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FileSource replays a 16-bit PCM WAV file as a frame stream. It is the
// capture source used for offline runs and pipeline tests: the file is split
// into fixed-duration frames and emitted on the Frames channel, optionally
// paced at real time.
//
// A FileSource never drops frames; its Gaps channel never emits.
type FileSource struct {
	frameDur time.Duration
	realtime bool

	sampleRate int
	channels   int
	pcm        []byte

	frames chan AudioFrame
	gaps   chan time.Duration
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// Compile-time assertion that FileSource satisfies Source.
var _ Source = (*FileSource)(nil)

// FileOption is a functional option for [NewFileSource].
type FileOption func(*FileSource)

// WithFrameDuration sets the duration of each emitted frame. Defaults to 32 ms,
// which matches the native chunk size of common VAD models at 16 kHz.
func WithFrameDuration(d time.Duration) FileOption {
	return func(s *FileSource) { s.frameDur = d }
}

// WithRealtimePacing makes the source sleep between frames so that playback
// proceeds at capture speed. Without it, frames are emitted as fast as the
// consumer accepts them (the default, used in tests).
func WithRealtimePacing() FileOption {
	return func(s *FileSource) { s.realtime = true }
}

// NewFileSource opens the WAV file at path and returns a Source that streams
// its content. Only uncompressed 16-bit PCM files are supported.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav %q: %w", path, err)
	}
	return NewFileSourceFromBytes(data, opts...)
}

// NewFileSourceFromBytes is like [NewFileSource] but parses an in-memory WAV
// image. Useful in tests where files are synthesised on the fly.
func NewFileSourceFromBytes(data []byte, opts ...FileOption) (*FileSource, error) {
	rate, channels, pcm, err := parseWAV(data)
	if err != nil {
		return nil, err
	}

	s := &FileSource{
		frameDur:   32 * time.Millisecond,
		sampleRate: rate,
		channels:   channels,
		pcm:        pcm,
		frames:     make(chan AudioFrame, 16),
		gaps:       make(chan time.Duration),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	go s.emit()
	return s, nil
}

// Frames implements [Source].
func (s *FileSource) Frames() <-chan AudioFrame { return s.frames }

// Gaps implements [Source]. A file source never drops audio, so the returned
// channel never emits.
func (s *FileSource) Gaps() <-chan time.Duration { return s.gaps }

// Close implements [Source]. It stops emission and closes the Frames channel.
func (s *FileSource) Close() error {
	s.once.Do(func() { close(s.done) })
	<-s.closed
	return nil
}

// emit slices the PCM payload into frames and sends them until exhaustion or
// Close.
func (s *FileSource) emit() {
	defer close(s.closed)
	defer close(s.frames)

	bytesPerFrame := int(int64(s.sampleRate) * int64(s.frameDur) / int64(time.Second))
	bytesPerFrame *= 2 * s.channels
	if bytesPerFrame <= 0 {
		return
	}

	var ts time.Duration
	for off := 0; off < len(s.pcm); off += bytesPerFrame {
		end := off + bytesPerFrame
		if end > len(s.pcm) {
			end = len(s.pcm)
		}
		frame := AudioFrame{
			Data:       s.pcm[off:end],
			SampleRate: s.sampleRate,
			Channels:   s.channels,
			Timestamp:  ts,
		}
		ts += s.frameDur

		if s.realtime {
			select {
			case <-time.After(s.frameDur):
			case <-s.done:
				return
			}
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// parseWAV extracts sample rate, channel count, and raw PCM payload from a
// RIFF/WAVE image. Returns an error for non-PCM or non-16-bit files.
func parseWAV(data []byte) (sampleRate, channels int, pcm []byte, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, 0, nil, errors.New("audio: not a RIFF/WAVE file")
	}

	var haveFmt bool
	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkLen > len(data) {
			return 0, 0, nil, io.ErrUnexpectedEOF
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return 0, 0, nil, errors.New("audio: wav fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return 0, 0, nil, fmt.Errorf("audio: unsupported wav format %d (only uncompressed PCM)", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return 0, 0, nil, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit)", bits)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return 0, 0, nil, errors.New("audio: wav data chunk before fmt chunk")
			}
			return sampleRate, channels, data[body : body+chunkLen], nil
		}

		// Chunks are word-aligned.
		off = body + chunkLen
		if chunkLen%2 == 1 {
			off++
		}
	}

	return 0, 0, nil, errors.New("audio: wav file has no data chunk")
}
