//go:build !cgo

package control

import "errors"

// without cgo there is no MIDI driver
var errNoMIDI = errors.New("MIDI input requires a cgo build")

type MIDIInput struct{}

func MIDIInputs() ([]string, error) { return nil, errNoMIDI }

func OpenMIDI(prefix string, m MIDIMap, c Controller) (*MIDIInput, error) {
	return nil, errNoMIDI
}

func (mi *MIDIInput) Name() string { return "" }
func (mi *MIDIInput) Close() error { return errNoMIDI }
