package looperfx

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cbegin/looperfx-go/internal/control"
	"github.com/cbegin/looperfx-go/internal/effects"
	"github.com/cbegin/looperfx-go/internal/looper"
	"github.com/cbegin/looperfx-go/internal/transport"
)

// Render runs input through a looper offline. Controls start from the
// timeline's preset and change exactly at event times; blocks are split at
// events so every change lands on its sample. Tail seconds of silence are
// appended so the loop can be heard after the input ends.
//
// With a preset tempo, the transport clock runs from the first sample unless
// some event starts or stops it explicitly. Events may also rewind the clock
// or change its tempo.
func Render(input [][]float32, sampleRate int, tl control.Timeline) ([][]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if len(input) == 0 {
		return nil, errors.New("input has no channels")
	}
	tl.Events = slices.Clone(tl.Events)
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	params, err := tl.Preset.Params()
	if err != nil {
		return nil, err
	}

	opts := append(tl.Preset.LooperOptions(), looper.WithChannels(len(input)), looper.WithMaxBlockSize(tl.BlockSize))
	l, err := looper.New(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	var clock *transport.Clock
	if t := tl.Preset.Tempo; t != nil {
		if clock, err = transport.NewClock(sampleRate, t.BPM, t.Top, t.Bottom); err != nil {
			return nil, fmt.Errorf("preset tempo: %w", err)
		}
		if !hasTransportEvents(tl.Events) {
			clock.Start()
		}
	}

	var limiter *effects.Limiter
	if tl.Limit != nil {
		limiter = effects.NewLimiter(sampleRate, *tl.Limit, 20, 1, 80)
	}

	frames := len(input[0])
	for c, ch := range input {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d has %d samples, want %d", c, len(ch), frames)
		}
	}
	total := frames + int(tl.Tail*float64(sampleRate))
	out := make([][]float32, len(input))
	for c := range out {
		out[c] = make([]float32, total)
		copy(out[c], input[c])
	}

	block := make([][]float32, len(out))
	next := 0
	mix := params.Mix
	for pos := 0; pos < total; {
		for next < len(tl.Events) && tl.Events[next].Frame(sampleRate) <= int64(pos) {
			e := tl.Events[next]
			if err := e.Apply(&params); err != nil {
				return nil, err
			}
			if clock != nil {
				switch e.Transport {
				case control.TransportStart:
					clock.Start()
				case control.TransportStop:
					clock.Stop()
				case control.TransportRewind:
					clock.Rewind()
				}
				if e.Tempo != nil {
					clock.SetTempo(*e.Tempo)
				}
			}
			next++
		}

		end := min(pos+tl.BlockSize, total)
		if next < len(tl.Events) {
			end = min(end, int(tl.Events[next].Frame(sampleRate)))
		}
		for c := range block {
			block[c] = out[c][pos:end]
		}

		begin := params
		begin.Mix = mix
		mix = params.Mix
		var tr *looper.Transport
		if clock != nil {
			tr = clock.Snapshot()
		}
		l.Process(&looper.Block{Samples: block, Begin: begin, End: params, Transport: tr})
		if limiter != nil {
			limiter.ProcessBlock(block)
		}
		if clock != nil {
			clock.Advance(end - pos)
		}
		pos = end
	}
	return out, nil
}

func hasTransportEvents(events []control.Event) bool {
	for _, e := range events {
		if e.Transport == control.TransportStart || e.Transport == control.TransportStop {
			return true
		}
	}
	return false
}
