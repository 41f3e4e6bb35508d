// Package transport provides a free-running host transport for standalone use,
// where no DAW reports tempo and song position.
package transport

import (
	"errors"
	"math"

	"github.com/cbegin/looperfx-go/internal/looper"
)

// Clock counts samples and derives musical position from a fixed tempo and
// time signature.
type Clock struct {
	sampleRate float64
	bpm        float64
	top        uint
	bottom     uint
	position   int64 // samples since start
	playing    bool
	snap       looper.Transport
}

func NewClock(sampleRate int, bpm float64, top, bottom uint) (*Clock, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if bpm <= 0 {
		return nil, errors.New("tempo must be positive")
	}
	if top == 0 || bottom == 0 {
		return nil, errors.New("time signature must be non-zero")
	}
	return &Clock{sampleRate: float64(sampleRate), bpm: bpm, top: top, bottom: bottom}, nil
}

func (c *Clock) Start() { c.playing = true }
func (c *Clock) Stop()  { c.playing = false }

// Rewind moves the song position back to zero.
func (c *Clock) Rewind() { c.position = 0 }

func (c *Clock) Playing() bool { return c.playing }
func (c *Clock) BPM() float64  { return c.bpm }

// SetTempo changes the tempo while keeping the sample position.
func (c *Clock) SetTempo(bpm float64) {
	if bpm > 0 {
		c.bpm = bpm
	}
}

// Snapshot returns the transport state at the current position. The pointer
// stays valid until the next call.
func (c *Clock) Snapshot() *looper.Transport {
	qn := looper.SamplesToQuarterNotes(float64(c.position), c.bpm, c.sampleRate)
	measure := float64(c.top) / float64(c.bottom) * 4
	c.snap = looper.Transport{
		BPM:                    c.bpm,
		TimeSigTop:             c.top,
		TimeSigBottom:          c.bottom,
		PositionInQuarterNotes: qn,
		PositionInSamples:      c.position,
		CurrentMeasureDownbeat: math.Floor(qn/measure) * measure,
		IsPlaying:              c.playing,
	}
	return &c.snap
}

// Advance moves the position by n samples while playing.
func (c *Clock) Advance(n int) {
	if c.playing {
		c.position += int64(n)
	}
}
