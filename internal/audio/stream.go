// Package audio connects a block processor to audio devices and WAV files.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// MaxReadFrames bounds the frames rendered by one Read, so processors can
// size their scratch space up front.
const MaxReadFrames = 4096

// Processor renders interleaved stereo frames into dst.
type Processor interface {
	Process(dst []float32)
}

// StreamReader exposes a Processor as the little-endian float32 stereo stream
// ebiten's audio context pulls from.
type StreamReader struct {
	mu        sync.Mutex
	processor Processor
	buf       []float32
	closed    bool
}

func NewStreamReader(p Processor) *StreamReader {
	return &StreamReader{processor: p}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}

	frames := min(len(p)/8, MaxReadFrames)
	if frames == 0 {
		return 0, nil
	}
	n := frames * 2
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	r.buf = r.buf[:n]
	r.processor.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

// Close ends the stream; later reads return io.EOF.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Player drives a Processor through the shared ebiten audio context.
type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

// sharedContext returns the process-wide ebiten context; ebiten allows only
// one, so every player must use the same sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// NewPlayer opens a paused output stream. bufferSize sets the device buffer;
// zero keeps ebiten's default.
func NewPlayer(sampleRate int, p Processor, bufferSize time.Duration) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(p)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play() { p.player.Play() }

// Position returns how much audio the listener has heard.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Close() error {
	p.player.Pause()
	err := p.player.Close()
	if cerr := p.reader.Close(); err == nil {
		err = cerr
	}
	return err
}
