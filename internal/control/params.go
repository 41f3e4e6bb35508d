// Package control describes the looper's host control surface: the parameter
// table, presets and render timelines stored as YAML, and MIDI mappings.
package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cbegin/looperfx-go/internal/looper"
)

// Input parameter indexes, in host order.
const (
	ParamRecord = iota
	ParamPlay
	ParamClear
	ParamTrigger
	ParamMode
	ParamSnap
	ParamReverse
	ParamMix
	NumParams
)

// Descriptor describes one host parameter. Plain values run from 0 to Max;
// Steps is the number of discrete positions, 0 for continuous parameters.
type Descriptor struct {
	Name    string
	Default float64
	Max     float64
	Steps   int
	Labels  []string
	Unit    string
}

var Inputs = [NumParams]Descriptor{
	ParamRecord:  {Name: "Record", Max: 1, Steps: 2, Labels: []string{"Stop", "Rec"}},
	ParamPlay:    {Name: "Play", Default: 1, Max: 1, Steps: 2, Labels: []string{"Stop", "Play"}},
	ParamClear:   {Name: "Clear", Max: 1, Steps: 2, Labels: []string{"", ""}},
	ParamTrigger: {Name: "Rec Trigger", Max: 1, Steps: 2, Labels: []string{"Manual", "Detect"}},
	ParamMode:    {Name: "Rec Mode", Max: 5, Steps: 6, Labels: []string{"Loop", "Repeat", "Append", "Overwrite", "Punch", "Clear"}},
	ParamSnap:    {Name: "Snap", Max: 2, Steps: 3, Labels: []string{"No Sync", "Measure", "Beat"}},
	ParamReverse: {Name: "Reverse", Max: 1, Steps: 2, Labels: []string{"No", "Yes"}},
	ParamMix:     {Name: "Mix", Default: 0.5, Max: 1, Unit: "%"},
}

// Outputs names the status values returned by looper.Status.Values.
var Outputs = [5]string{"Play", "Rec", "PlayHead", "RecordHead", "Loop Len"}

// Normalize maps a plain value to the [0,1] range hosts automate.
func (d Descriptor) Normalize(plain float64) float64 {
	if d.Max == 0 {
		return 0
	}
	return clamp01(plain / d.Max)
}

// Denormalize maps a host value in [0,1] back to a plain value, snapped to
// the nearest step for discrete parameters.
func (d Descriptor) Denormalize(norm float64) float64 {
	v := clamp01(norm) * d.Max
	if d.Steps > 1 {
		v = math.Floor(v + .5)
	}
	return v
}

// Label returns the display text for a plain value.
func (d Descriptor) Label(plain float64) string {
	if d.Steps > 1 && len(d.Labels) == d.Steps {
		i := int(math.Floor(plain + .5))
		if i >= 0 && i < len(d.Labels) {
			return d.Labels[i]
		}
	}
	if d.Unit == "%" {
		return fmt.Sprintf("%.0f%%", plain*100)
	}
	return fmt.Sprintf("%.2f", plain)
}

// Defaults returns the plain default value of every parameter.
func Defaults() [NumParams]float64 {
	var v [NumParams]float64
	for i, d := range Inputs {
		v[i] = d.Default
	}
	return v
}

// ParamsFromValues converts plain parameter values to a looper snapshot.
func ParamsFromValues(v [NumParams]float64) looper.Params {
	return looper.Params{
		Record:  v[ParamRecord] > .5,
		Play:    v[ParamPlay] > .5,
		Clear:   v[ParamClear] > .5,
		Trigger: looper.TriggerMode(stepIndex(v[ParamTrigger], ParamTrigger)),
		Mode:    looper.RecordMode(stepIndex(v[ParamMode], ParamMode)),
		Snap:    looper.SnapMode(stepIndex(v[ParamSnap], ParamSnap)),
		Reverse: v[ParamReverse] > .5,
		Mix:     clamp01(v[ParamMix]),
	}
}

// ValuesFromParams is the inverse of ParamsFromValues.
func ValuesFromParams(p looper.Params) [NumParams]float64 {
	var v [NumParams]float64
	v[ParamRecord] = boolValue(p.Record)
	v[ParamPlay] = boolValue(p.Play)
	v[ParamClear] = boolValue(p.Clear)
	v[ParamTrigger] = float64(p.Trigger)
	v[ParamMode] = float64(p.Mode)
	v[ParamSnap] = float64(p.Snap)
	v[ParamReverse] = boolValue(p.Reverse)
	v[ParamMix] = p.Mix
	return v
}

// Lookup finds a parameter index by case-insensitive name.
func Lookup(name string) (int, bool) {
	for i, d := range Inputs {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return i, true
		}
	}
	return 0, false
}

// ParseSetting parses "name=value". The value is a plain number or, for
// discrete parameters, one of the labels.
func ParseSetting(s string) (int, float64, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, fmt.Errorf("invalid setting %q (expected name=value)", s)
	}
	i, ok := Lookup(name)
	if !ok {
		return 0, 0, fmt.Errorf("unknown parameter %q", strings.TrimSpace(name))
	}
	d := Inputs[i]
	value = strings.TrimSpace(value)
	for j, label := range d.Labels {
		if label != "" && strings.EqualFold(label, value) {
			return i, float64(j), nil
		}
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 || v > d.Max {
		return 0, 0, fmt.Errorf("invalid value %q for %s", value, d.Name)
	}
	return i, v, nil
}

// WithValue returns p with one parameter set to a plain value.
func WithValue(p looper.Params, index int, plain float64) looper.Params {
	v := ValuesFromParams(p)
	v[index] = plain
	return ParamsFromValues(v)
}

func stepIndex(plain float64, param int) int {
	i := int(math.Floor(plain + .5))
	if i < 0 {
		return 0
	}
	if last := Inputs[param].Steps - 1; i > last {
		return last
	}
	return i
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
