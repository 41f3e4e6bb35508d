//go:build plugin

package main

import (
	"github.com/cbegin/looperfx-go/internal/control"
	"github.com/cbegin/looperfx-go/internal/looper"
	"pipelined.dev/audio/vst2"
)

const (
	pluginID      = int32('L')<<24 | int32('p')<<16 | int32('f')<<8 | int32('x')
	pluginName    = "looperfx"
	pluginVersion = int32(100)
	channels      = 2
	maxSeconds    = 60
)

type processor struct {
	host   vst2.Host
	params []*vst2.Parameter
	looper *looper.Looper
	rate   float64
	prev   looper.Params
	tr     looper.Transport
	block  [][]float32
}

// current reads the host parameter values into a looper snapshot.
func (p *processor) current() looper.Params {
	var v [control.NumParams]float64
	for i, param := range p.params {
		v[i] = control.Inputs[i].Denormalize(float64(param.Value))
	}
	return control.ParamsFromValues(v)
}

// transport converts the host time info; nil when the host has no tempo.
func (p *processor) transport() *looper.Transport {
	const want = vst2.TransportPlaying | vst2.TempoValid | vst2.PpqPosValid | vst2.BarsValid | vst2.TimeSigValid
	ti := p.host.GetTimeInfo(want)
	if ti == nil || ti.Flags&vst2.TempoValid == 0 || ti.Tempo <= 0 {
		return nil
	}
	p.tr = looper.Transport{
		BPM:               ti.Tempo,
		PositionInSamples: int64(ti.SamplePos),
		IsPlaying:         ti.Flags&vst2.TransportPlaying != 0,
	}
	if ti.Flags&vst2.PpqPosValid != 0 {
		p.tr.PositionInQuarterNotes = ti.PpqPos
	} else {
		p.tr.PositionInQuarterNotes = looper.SamplesToQuarterNotes(ti.SamplePos, ti.Tempo, ti.SampleRate)
	}
	if ti.Flags&vst2.TimeSigValid != 0 && ti.TimeSigNumerator > 0 && ti.TimeSigDenominator > 0 {
		p.tr.TimeSigTop = uint(ti.TimeSigNumerator)
		p.tr.TimeSigBottom = uint(ti.TimeSigDenominator)
	}
	if ti.Flags&vst2.BarsValid != 0 {
		p.tr.CurrentMeasureDownbeat = ti.BarStartPos
	}
	return &p.tr
}

// ensureLooper (re)creates the looper when the host sample rate changes.
func (p *processor) ensureLooper(frames int) bool {
	rate := 0.0
	if ti := p.host.GetTimeInfo(0); ti != nil {
		rate = ti.SampleRate
	}
	if rate <= 0 {
		return p.looper != nil
	}
	if p.looper != nil && rate == p.rate {
		return true
	}
	if p.looper != nil {
		p.looper.Close()
	}
	l, err := looper.New(int(rate), looper.WithChannels(channels), looper.WithMaxBlockSize(frames))
	if err != nil {
		p.looper = nil
		return false
	}
	p.looper, p.rate = l, rate
	p.prev = p.current()
	return true
}

func (p *processor) process(in, out vst2.FloatBuffer) {
	if !p.ensureLooper(out.Frames) {
		for c := 0; c < channels; c++ {
			copy(out.Channel(c), in.Channel(c))
		}
		return
	}
	for c := range p.block {
		p.block[c] = out.Channel(c)
		copy(p.block[c], in.Channel(c))
	}
	end := p.current()
	begin := end
	begin.Mix = p.prev.Mix
	p.prev = end
	p.looper.Process(&looper.Block{Samples: p.block, Begin: begin, End: end, Transport: p.transport()})
}

func init() {
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		p := &processor{host: h, block: make([][]float32, channels)}
		defaults := control.Defaults()
		for i, d := range control.Inputs {
			p.params = append(p.params, &vst2.Parameter{
				Name:  d.Name,
				Unit:  d.Unit,
				Value: float32(d.Normalize(defaults[i])),
			})
		}
		return vst2.Plugin{
				UniqueID:         pluginID,
				Version:          pluginVersion,
				InputChannels:    channels,
				OutputChannels:   channels,
				Name:             pluginName,
				Vendor:           "cbegin/looperfx-go",
				Category:         vst2.PluginCategoryEffect,
				Parameters:       p.params,
				ProcessFloatFunc: p.process,
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					if pcds == vst2.PluginCanReceiveTimeInfo {
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				CloseFunc: func() {
					if p.looper != nil {
						p.looper.Close()
					}
				},
			}
	}
}

func main() {}
