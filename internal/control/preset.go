package control

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/looperfx-go/internal/looper"
)

// Tempo configures the standalone transport clock.
type Tempo struct {
	BPM    float64 `yaml:"bpm"`
	Top    uint    `yaml:"top"`
	Bottom uint    `yaml:"bottom"`
}

// Engine holds the tunable engine constants. Zero values keep the defaults.
type Engine struct {
	FadeMs       float64 `yaml:"fade_ms,omitempty"`
	Threshold    float64 `yaml:"trigger_threshold,omitempty"`
	MaxSeconds   float64 `yaml:"max_seconds,omitempty"`
	MaxBlockSize int     `yaml:"max_block_size,omitempty"`
}

// Preset is the initial control state of a session.
type Preset struct {
	Mode    string  `yaml:"mode"`
	Snap    string  `yaml:"snap"`
	Trigger string  `yaml:"trigger"`
	Play    bool    `yaml:"play"`
	Reverse bool    `yaml:"reverse"`
	Mix     float64 `yaml:"mix"`
	Tempo   *Tempo  `yaml:"tempo,omitempty"`
	Engine  Engine  `yaml:"engine,omitempty"`
	MIDI    MIDIMap `yaml:"midi"`
}

// DefaultPreset matches the host parameter defaults.
func DefaultPreset() Preset {
	p := looper.DefaultParams()
	return Preset{
		Mode:    p.Mode.String(),
		Snap:    p.Snap.String(),
		Trigger: p.Trigger.String(),
		Play:    p.Play,
		Mix:     p.Mix,
		MIDI:    DefaultMIDIMap(),
	}
}

// ParsePreset decodes YAML on top of the defaults, so missing keys keep their
// default values.
func ParsePreset(data []byte) (Preset, error) {
	p := DefaultPreset()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	if _, err := p.Params(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}
	return ParsePreset(data)
}

func (p Preset) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Params returns the control snapshot described by the preset.
func (p Preset) Params() (looper.Params, error) {
	mode, err := looper.ParseRecordMode(p.Mode)
	if err != nil {
		return looper.Params{}, err
	}
	snap, err := looper.ParseSnapMode(p.Snap)
	if err != nil {
		return looper.Params{}, err
	}
	trigger, err := looper.ParseTriggerMode(p.Trigger)
	if err != nil {
		return looper.Params{}, err
	}
	if p.Mix < 0 || p.Mix > 1 {
		return looper.Params{}, fmt.Errorf("mix %v out of range [0,1]", p.Mix)
	}
	return looper.Params{
		Play:    p.Play,
		Reverse: p.Reverse,
		Mode:    mode,
		Snap:    snap,
		Trigger: trigger,
		Mix:     p.Mix,
	}, nil
}

// LooperOptions turns the engine section into looper options.
func (p Preset) LooperOptions() []looper.Option {
	var opts []looper.Option
	if p.Engine.FadeMs > 0 {
		opts = append(opts, looper.WithFadeTime(time.Duration(p.Engine.FadeMs*float64(time.Millisecond))))
	}
	if p.Engine.Threshold > 0 {
		opts = append(opts, looper.WithTriggerThreshold(p.Engine.Threshold))
	}
	if p.Engine.MaxSeconds > 0 {
		opts = append(opts, looper.WithMaxDuration(time.Duration(p.Engine.MaxSeconds*float64(time.Second))))
	}
	if p.Engine.MaxBlockSize > 0 {
		opts = append(opts, looper.WithMaxBlockSize(p.Engine.MaxBlockSize))
	}
	return opts
}
