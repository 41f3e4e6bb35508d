//go:build portaudio

package audio

import (
	"fmt"

	pa "github.com/gordonklaus/portaudio"
)

// DuplexProcessor consumes one block of device input and writes the output.
type DuplexProcessor interface {
	ProcessDuplex(in, out [][]float32)
}

// Duplex is a full-duplex stream on the default input and output devices.
type Duplex struct {
	stream     *pa.Stream
	sampleRate float64
}

// OpenDuplex initializes portaudio and opens a stream with the given channel
// count on both sides. The stream starts paused.
func OpenDuplex(sampleRate, channels, framesPerBuffer int, p DuplexProcessor) (*Duplex, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	stream, err := pa.OpenDefaultStream(channels, channels, float64(sampleRate), framesPerBuffer,
		func(in, out [][]float32) {
			p.ProcessDuplex(in, out)
		})
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("open duplex stream: %w", err)
	}
	return &Duplex{stream: stream, sampleRate: stream.Info().SampleRate}, nil
}

// Devices describes the default devices. It needs an open Duplex.
func Devices() (string, error) {
	in, err := pa.DefaultInputDevice()
	if err != nil {
		return "", err
	}
	out, err := pa.DefaultOutputDevice()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: in %q, out %q", pa.VersionText(), in.Name, out.Name), nil
}

func (d *Duplex) SampleRate() float64 { return d.sampleRate }
func (d *Duplex) Start() error        { return d.stream.Start() }
func (d *Duplex) Stop() error         { return d.stream.Stop() }

func (d *Duplex) Close() error {
	err := d.stream.Close()
	if terr := pa.Terminate(); err == nil {
		err = terr
	}
	return err
}
