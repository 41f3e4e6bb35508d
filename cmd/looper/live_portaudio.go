//go:build portaudio

package main

import (
	"log"

	"github.com/cbegin/looperfx-go"
	"github.com/cbegin/looperfx-go/internal/audio"
)

const liveFrames = 256

func startLive(pl *looperfx.Player) (func() error, error) {
	d, err := audio.OpenDuplex(pl.SampleRate(), pl.Channels(), liveFrames, pl)
	if err != nil {
		return nil, err
	}
	if info, err := audio.Devices(); err == nil {
		log.Print(info)
	}
	if err := d.Start(); err != nil {
		d.Close()
		return nil, err
	}
	return func() error {
		if err := d.Stop(); err != nil {
			return err
		}
		return d.Close()
	}, nil
}
