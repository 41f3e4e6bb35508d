//go:build !portaudio

package main

import (
	"errors"

	"github.com/cbegin/looperfx-go"
)

func startLive(pl *looperfx.Player) (func() error, error) {
	return nil, errors.New("-live needs a build with -tags portaudio")
}
