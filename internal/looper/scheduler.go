package looper

import (
	"math"
	"slices"

	"github.com/viterin/vek/vek32"
)

// Transport is the host transport state at the first sample of a block.
type Transport struct {
	BPM                    float64
	TimeSigTop             uint
	TimeSigBottom          uint
	PositionInQuarterNotes float64
	PositionInSamples      int64
	CurrentMeasureDownbeat float64
	IsPlaying              bool
}

// NoEvent marks a transition that does not fire in the current block.
const NoEvent = -1

// Schedule holds the in-block sample offset of every transition, or NoEvent.
type Schedule struct {
	StartRecord  int
	StopRecord   int
	StartPlay    int
	StopPlay     int
	StartReverse int
	StopReverse  int
}

func emptySchedule() Schedule {
	return Schedule{
		StartRecord:  NoEvent,
		StopRecord:   NoEvent,
		StartPlay:    NoEvent,
		StopPlay:     NoEvent,
		StartReverse: NoEvent,
		StopReverse:  NoEvent,
	}
}

// QuarterNotesToSamples converts a quarter-note position to samples.
func QuarterNotesToSamples(position, bpm, sampleRate float64) float64 {
	return position * 60 * sampleRate / bpm
}

// SamplesToQuarterNotes converts a sample count to quarter notes.
func SamplesToQuarterNotes(samples, bpm, sampleRate float64) float64 {
	return samples * bpm / (60 * sampleRate)
}

// MeasureLength returns the measure length in quarter notes, or false when the
// time signature cannot define one.
func MeasureLength(tr *Transport) (float64, bool) {
	if tr.TimeSigBottom == 0 || tr.TimeSigTop == 0 {
		return 0, false
	}
	return float64(tr.TimeSigTop) / float64(tr.TimeSigBottom) * 4, true
}

// NextSnapOffset returns the offset, relative to the block start, of the first
// snap boundary at or after sample `from` of the block. It reports false when
// no boundary can be computed: no snap, no usable transport, transport stopped,
// invalid tempo or (for measure snap) an invalid time signature. The offset may
// lie beyond the current block.
func NextSnapOffset(snap SnapMode, tr *Transport, from int, sampleRate float64) (int64, bool) {
	if snap == SnapNone || tr == nil || !tr.IsPlaying || tr.BPM <= 0 {
		return 0, false
	}
	pos := tr.PositionInQuarterNotes
	if from > 0 {
		pos += SamplesToQuarterNotes(float64(from), tr.BPM, sampleRate)
	}

	var expected float64
	switch snap {
	case SnapQuarter:
		expected = math.Ceil(pos)
	case SnapMeasure:
		measure, ok := MeasureLength(tr)
		if !ok {
			return 0, false
		}
		expected = tr.CurrentMeasureDownbeat
		if expected < pos {
			expected += math.Ceil((pos-expected)/measure) * measure
		}
	default:
		return 0, false
	}

	target := int64(math.Floor(QuarterNotesToSamples(expected, tr.BPM, sampleRate) + .5))
	return target - tr.PositionInSamples, true
}

// detector scans input blocks for the first sample above a threshold.
type detector struct {
	threshold float32
	abs       []float32
	over      []bool
}

func newDetector(threshold float64, blockSize int) *detector {
	return &detector{
		threshold: float32(threshold),
		abs:       make([]float32, blockSize),
		over:      make([]bool, blockSize),
	}
}

// onset returns the earliest sample index, over all channels, whose magnitude
// exceeds the threshold, or -1.
func (d *detector) onset(samples [][]float32, n int) int {
	if cap(d.abs) < n {
		d.abs = make([]float32, n)
		d.over = make([]bool, n)
	}
	found := -1
	for _, ch := range samples {
		limit := n
		if found >= 0 {
			limit = found
		}
		if limit == 0 {
			break
		}
		abs := vek32.Abs_Into(d.abs[:limit], ch[:limit])
		over := vek32.GtNumber_Into(d.over[:limit], abs, d.threshold)
		if i := slices.Index(over, true); i >= 0 {
			found = i
		}
	}
	return found
}
