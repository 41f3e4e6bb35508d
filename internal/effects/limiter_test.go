package effects

import (
	"math"
	"testing"
)

func block(frames int, v float32) [][]float32 {
	ch := [][]float32{make([]float32, frames), make([]float32, frames)}
	for i := range ch[0] {
		ch[0][i] = v
		ch[1][i] = v / 2
	}
	return ch
}

func TestLimiterReducesLoud(t *testing.T) {
	l := NewLimiter(44100, -6, 20, 1, 50)
	b := block(2000, 1.8)
	l.ProcessBlock(b)
	last := b[0][len(b[0])-1]
	if last >= 1 {
		t.Fatalf("limited peak = %v, want below full scale", last)
	}
	// channels share one gain
	if r := b[1][len(b[1])-1]; math.Abs(float64(r*2-last)) > 1e-6 {
		t.Fatalf("channel balance lost: %v vs %v", last, r)
	}
}

func TestLimiterPassesQuiet(t *testing.T) {
	l := NewLimiter(48000, -1, 20, 1, 50)
	b := block(500, 0.5)
	l.ProcessBlock(b)
	for i, v := range b[0] {
		if v != 0.5 {
			t.Fatalf("sample %d = %v, quiet input should pass unchanged", i, v)
		}
	}
}

func TestLimiterThreshold(t *testing.T) {
	l := NewLimiter(48000, -3, 10, 1, 50)
	if got := l.Threshold(); math.Abs(got+3) > 1e-4 {
		t.Fatalf("threshold = %v dB, want -3", got)
	}
	l.SetThreshold(-12)
	if got := l.Threshold(); math.Abs(got+12) > 1e-4 {
		t.Fatalf("threshold = %v dB, want -12", got)
	}
}
