package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cbegin/looperfx-go"
	"github.com/cbegin/looperfx-go/internal/audio"
	"github.com/cbegin/looperfx-go/internal/control"
)

func main() {
	var (
		inPath       = flag.String("in", "", "input WAV file")
		outPath      = flag.String("out", "looper.wav", "output WAV file")
		timelinePath = flag.String("timeline", "", "YAML timeline; without it the input passes through the default controls")
		tail         = flag.Float64("tail", -1, "override the timeline tail in seconds")
		bits         = flag.Int("bits", 32, "output format: 32 for float, 16 or 24 for integer PCM")
	)
	flag.Parse()
	if *inPath == "" {
		log.Fatal("missing -in")
	}

	tl := control.DefaultTimeline()
	if *timelinePath != "" {
		var err error
		if tl, err = control.LoadTimeline(*timelinePath); err != nil {
			log.Fatal(err)
		}
	}
	if *tail >= 0 {
		tl.Tail = *tail
	}

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatal(err)
	}
	clip, err := audio.DecodeWAV(f)
	f.Close()
	if err != nil {
		log.Fatalf("%s: %v", *inPath, err)
	}

	out, err := looperfx.Render(clip.Channels, clip.SampleRate, tl)
	if err != nil {
		log.Fatal(err)
	}
	rendered := &audio.Clip{SampleRate: clip.SampleRate, Channels: out}
	if err := writeClip(*outPath, rendered, *bits); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%d channels, %.2fs, %d events)\n", *outPath, len(out),
		float64(rendered.Frames())/float64(clip.SampleRate), len(tl.Events))
}

func writeClip(path string, c *audio.Clip, bits int) error {
	if bits == 32 {
		return os.WriteFile(path, audio.EncodeClip(c), 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audio.EncodePCM(f, c, bits); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
