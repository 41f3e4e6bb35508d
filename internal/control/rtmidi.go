//go:build cgo

package control

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDIInput is an open hardware input feeding a Controller.
type MIDIInput struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

// MIDIInputs lists the names of the available input ports.
func MIDIInputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// OpenMIDI opens the first input whose name starts with prefix (any input when
// prefix is empty) and routes its messages through m to c. Handlers run on the
// driver's goroutine.
func OpenMIDI(prefix string, m MIDIMap, c Controller) (*MIDIInput, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open MIDI driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}
	var in drivers.In
	for _, candidate := range ins {
		if strings.HasPrefix(candidate.String(), prefix) {
			in = candidate
			break
		}
	}
	if in == nil {
		drv.Close()
		return nil, fmt.Errorf("no MIDI input matching %q", prefix)
	}
	if err := in.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open MIDI input %s: %w", in, err)
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		m.Handle(msg, c)
	})
	if err != nil {
		in.Close()
		drv.Close()
		return nil, err
	}
	return &MIDIInput{driver: drv, in: in, stop: stop}, nil
}

func (mi *MIDIInput) Name() string { return mi.in.String() }

func (mi *MIDIInput) Close() error {
	if mi == nil {
		return errors.New("MIDI input not open")
	}
	mi.stop()
	err := mi.in.Close()
	mi.driver.Close()
	return err
}
