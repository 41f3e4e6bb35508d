// Package effects holds the output stage applied after the looper mix.
package effects

import (
	"math"
	"sync/atomic"
)

// Limiter is a linked-channel peak compressor. Overdubs add up, so the mixed
// output can exceed full scale; the limiter pulls it back under the threshold.
type Limiter struct {
	threshold atomic.Uint32 // float32 bits, linear
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: level above which gain is reduced (e.g. -1)
// ratio: reduction ratio above threshold (e.g. 20 for 20:1)
// attackMs, releaseMs: envelope times
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float64) *Limiter {
	sr := float64(sampleRate)
	l := &Limiter{
		ratio:   float32(ratio),
		attack:  float32(1 - math.Exp(-1/(attackMs*sr/1000))),
		release: float32(1 - math.Exp(-1/(releaseMs*sr/1000))),
	}
	l.SetThreshold(thresholdDB)
	return l
}

// SetThreshold changes the threshold; safe to call from any goroutine.
func (l *Limiter) SetThreshold(db float64) {
	l.threshold.Store(math.Float32bits(float32(math.Pow(10, db/20))))
}

// Threshold returns the current threshold in dB.
func (l *Limiter) Threshold() float64 {
	return 20 * math.Log10(float64(math.Float32frombits(l.threshold.Load())))
}

// ProcessBlock limits every channel in place with one shared gain per frame.
func (l *Limiter) ProcessBlock(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	threshold := math.Float32frombits(l.threshold.Load())
	for i := range channels[0] {
		var peak float32
		for _, ch := range channels {
			if a := float32(math.Abs(float64(ch[i]))); a > peak {
				peak = a
			}
		}
		if peak > l.env {
			l.env += l.attack * (peak - l.env)
		} else {
			l.env += l.release * (peak - l.env)
		}
		g := l.gain(l.env, threshold)
		if g == 1 {
			continue
		}
		for _, ch := range channels {
			ch[i] *= g
		}
	}
}

func (l *Limiter) gain(env, threshold float32) float32 {
	if env <= threshold || threshold <= 0 {
		return 1
	}
	over := env / threshold
	return float32(math.Pow(float64(over), float64(1/l.ratio-1)))
}
