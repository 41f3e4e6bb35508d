package control

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/looperfx-go/internal/looper"
)

// Controller is the part of a player that MIDI input can drive.
type Controller interface {
	ToggleRecord()
	TogglePlay()
	ToggleReverse()
	Clear()
	SetMix(float64)
	SetMode(looper.RecordMode)
}

// MIDIMap binds note-on messages to the looper's toggles and control changes
// to its continuous controls. A negative number disables a binding; a negative
// Channel listens on every channel.
type MIDIMap struct {
	Channel     int `yaml:"channel"`
	RecordNote  int `yaml:"record_note"`
	PlayNote    int `yaml:"play_note"`
	ReverseNote int `yaml:"reverse_note"`
	ClearNote   int `yaml:"clear_note"`
	MixCC       int `yaml:"mix_cc"`
	ModeCC      int `yaml:"mode_cc"`
}

// DefaultMIDIMap uses the bottom-left pads of a common drum controller layout
// and the first two knobs.
func DefaultMIDIMap() MIDIMap {
	return MIDIMap{
		Channel:     -1,
		RecordNote:  36,
		PlayNote:    37,
		ReverseNote: 38,
		ClearNote:   39,
		MixCC:       1,
		ModeCC:      2,
	}
}

// Handle applies one message to c and reports whether it was bound.
func (m MIDIMap) Handle(msg midi.Message, c Controller) bool {
	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) {
		if vel == 0 || !m.listens(ch) {
			return false
		}
		switch int(key) {
		case m.RecordNote:
			c.ToggleRecord()
		case m.PlayNote:
			c.TogglePlay()
		case m.ReverseNote:
			c.ToggleReverse()
		case m.ClearNote:
			c.Clear()
		default:
			return false
		}
		return true
	}
	var cc, val uint8
	if msg.GetControlChange(&ch, &cc, &val) {
		if !m.listens(ch) {
			return false
		}
		switch int(cc) {
		case m.MixCC:
			c.SetMix(float64(val) / 127)
		case m.ModeCC:
			// the knob range is split evenly across the modes
			steps := Inputs[ParamMode].Steps
			c.SetMode(looper.RecordMode(min(int(val)*steps/128, steps-1)))
		default:
			return false
		}
		return true
	}
	return false
}

func (m MIDIMap) listens(ch uint8) bool {
	return m.Channel < 0 || int(ch) == m.Channel
}
