package control

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/looperfx-go/internal/looper"
)

// Transport actions an event may carry.
const (
	TransportStart  = "start"
	TransportStop   = "stop"
	TransportRewind = "rewind"
)

// Event changes part of the control surface at a point in time. Unset fields
// keep their previous value. Clear toggles the clear control, which is what
// erases the loop.
type Event struct {
	At        float64  `yaml:"at"`
	Record    *bool    `yaml:"record,omitempty"`
	Play      *bool    `yaml:"play,omitempty"`
	Reverse   *bool    `yaml:"reverse,omitempty"`
	Clear     bool     `yaml:"clear,omitempty"`
	Mode      *string  `yaml:"mode,omitempty"`
	Snap      *string  `yaml:"snap,omitempty"`
	Trigger   *string  `yaml:"trigger,omitempty"`
	Mix       *float64 `yaml:"mix,omitempty"`
	Transport string   `yaml:"transport,omitempty"`
	Tempo     *float64 `yaml:"tempo,omitempty"` // bpm
}

// Timeline scripts an offline render. Limit, when set, runs the output
// through a limiter at that threshold in dB.
type Timeline struct {
	BlockSize int      `yaml:"block_size"`
	Tail      float64  `yaml:"tail"`
	Limit     *float64 `yaml:"limit,omitempty"`
	Preset    Preset   `yaml:"preset"`
	Events    []Event  `yaml:"events"`
}

const DefaultBlockSize = 512

func DefaultTimeline() Timeline {
	return Timeline{BlockSize: DefaultBlockSize, Preset: DefaultPreset()}
}

// ParseTimeline decodes and validates a timeline. Events are sorted by time;
// events sharing a time keep their file order.
func ParseTimeline(data []byte) (Timeline, error) {
	tl := DefaultTimeline()
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return Timeline{}, fmt.Errorf("decode timeline: %w", err)
	}
	if err := tl.Validate(); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

func LoadTimeline(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, err
	}
	return ParseTimeline(data)
}

// Validate checks every field and sorts the events.
func (tl *Timeline) Validate() error {
	if tl.BlockSize <= 0 {
		return errors.New("block_size must be positive")
	}
	if tl.Tail < 0 {
		return errors.New("tail must not be negative")
	}
	if tl.Limit != nil && *tl.Limit >= 0 {
		return fmt.Errorf("limit %v dB must be below 0", *tl.Limit)
	}
	if _, err := tl.Preset.Params(); err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	for i, e := range tl.Events {
		if e.At < 0 {
			return fmt.Errorf("event %d: negative time %v", i, e.At)
		}
		var p looper.Params
		if err := e.Apply(&p); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		switch e.Transport {
		case "", TransportStart, TransportStop, TransportRewind:
		default:
			return fmt.Errorf("event %d: invalid transport action %q", i, e.Transport)
		}
		if e.Tempo != nil && *e.Tempo <= 0 {
			return fmt.Errorf("event %d: tempo must be positive", i)
		}
	}
	sort.SliceStable(tl.Events, func(i, j int) bool { return tl.Events[i].At < tl.Events[j].At })
	return nil
}

// Frame returns the sample offset of the event at the given rate.
func (e Event) Frame(sampleRate int) int64 {
	return int64(e.At*float64(sampleRate) + .5)
}

// Apply writes the fields the event sets into p.
func (e Event) Apply(p *looper.Params) error {
	if e.Record != nil {
		p.Record = *e.Record
	}
	if e.Play != nil {
		p.Play = *e.Play
	}
	if e.Reverse != nil {
		p.Reverse = *e.Reverse
	}
	if e.Clear {
		p.Clear = !p.Clear
	}
	if e.Mode != nil {
		m, err := looper.ParseRecordMode(*e.Mode)
		if err != nil {
			return err
		}
		p.Mode = m
	}
	if e.Snap != nil {
		s, err := looper.ParseSnapMode(*e.Snap)
		if err != nil {
			return err
		}
		p.Snap = s
	}
	if e.Trigger != nil {
		t, err := looper.ParseTriggerMode(*e.Trigger)
		if err != nil {
			return err
		}
		p.Trigger = t
	}
	if e.Mix != nil {
		if *e.Mix < 0 || *e.Mix > 1 {
			return fmt.Errorf("mix %v out of range [0,1]", *e.Mix)
		}
		p.Mix = *e.Mix
	}
	return nil
}
