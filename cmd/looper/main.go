package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cbegin/looperfx-go"
	"github.com/cbegin/looperfx-go/internal/audio"
	"github.com/cbegin/looperfx-go/internal/control"
	"github.com/cbegin/looperfx-go/internal/looper"
)

const keyHelp = `keys: r record  p play  v reverse  c clear  m mode  s snap  t trigger
      +/- mix  space transport  w rewind  [/] tempo  </> limit  q quit`

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "sample rate")
		presetPath = flag.String("preset", "", "path to a YAML preset")
		inputPath  = flag.String("input", "", "WAV file used as input instead of silence")
		loopInput  = flag.Bool("loop-input", true, "repeat the -input file")
		bpm        = flag.Float64("bpm", 0, "transport tempo; 0 uses the preset tempo or none")
		signature  = flag.String("sig", "4/4", "time signature for -bpm")
		midiIn     = flag.String("midi", "", "MIDI input name prefix; \"any\" opens the first input")
		live       = flag.Bool("live", false, "use the default audio input and output (portaudio builds)")
		limit      = flag.Float64("limit", 0, "output limiter threshold in dB, e.g. -1; 0 disables")
	)
	var settings []string
	flag.Func("set", "set a parameter by name, e.g. -set \"Rec Mode=Punch\" (repeatable)", func(s string) error {
		if _, _, err := control.ParseSetting(s); err != nil {
			return err
		}
		settings = append(settings, s)
		return nil
	})
	flag.Parse()

	preset := control.DefaultPreset()
	if *presetPath != "" {
		var err error
		if preset, err = control.LoadPreset(*presetPath); err != nil {
			log.Fatal(err)
		}
	}
	opts := []looperfx.PlayerOption{looperfx.WithPreset(preset)}
	if *bpm > 0 {
		top, bottom, err := parseSignature(*signature)
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, looperfx.WithTempo(*bpm, top, bottom))
	}
	inputDone := make(chan struct{}, 1)
	if *inputPath != "" {
		clip, err := loadClip(*inputPath)
		if err != nil {
			log.Fatal(err)
		}
		if clip.SampleRate != *sampleRate {
			log.Fatalf("%s is %d Hz; run with -sample-rate %d", *inputPath, clip.SampleRate, clip.SampleRate)
		}
		src := audio.NewClipSource(clip, *loopInput)
		opts = append(opts, looperfx.WithInput(src))
		if !*loopInput {
			// the tap runs on the audio thread, the same one that reads src
			opts = append(opts, looperfx.WithStatusTap(func(looper.Status) {
				if src.Done() {
					select {
					case inputDone <- struct{}{}:
					default:
					}
				}
			}))
		}
	}
	if *limit < 0 {
		opts = append(opts, looperfx.WithLimiter(*limit))
	}

	pl, err := looperfx.NewPlayer(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	if len(settings) > 0 {
		p := pl.Params()
		for _, s := range settings {
			i, v, _ := control.ParseSetting(s)
			p = control.WithValue(p, i, v)
		}
		pl.SetParams(p)
	}
	events := pl.Watch()

	var stopAudio func() error
	if *live {
		stopAudio, err = startLive(pl)
	} else {
		err = pl.Start()
		stopAudio = func() error { return nil }
	}
	if err != nil {
		log.Fatal(err)
	}

	if *midiIn != "" {
		prefix := *midiIn
		if prefix == "any" {
			prefix = ""
		}
		in, err := control.OpenMIDI(prefix, preset.MIDI, pl)
		if err != nil {
			log.Fatal(err)
		}
		defer in.Close()
		log.Printf("MIDI input: %s", in.Name())
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("raw terminal: %v", err)
	}
	// raw mode drops the carriage return from newlines
	log.SetOutput(crlfWriter{os.Stderr})
	log.SetFlags(log.Ltime)

	keys := make(chan byte)
	go readKeys(os.Stdin, keys)

	log.Print(keyHelp)
	logParams(pl.Params())
loop:
	for {
		select {
		case ev := <-events:
			log.Printf("%s (loop %.2fs)", ev.Kind, float64(ev.LoopLength)/float64(*sampleRate))
		case <-inputDone:
			log.Printf("%s finished", *inputPath)
			break loop
		case k, ok := <-keys:
			if !ok || !handleKey(pl, k) {
				break loop
			}
		}
	}

	term.Restore(fd, oldState)
	if err := stopAudio(); err != nil {
		log.Print(err)
	}
	if err := pl.Stop(); err != nil {
		log.Print(err)
	}
}

// handleKey applies one key press and reports whether to keep running.
func handleKey(pl *looperfx.Player, k byte) bool {
	p := pl.Params()
	switch k {
	case 'q', 3: // ctrl-c
		return false
	case 'r':
		pl.ToggleRecord()
	case 'p':
		pl.TogglePlay()
	case 'v':
		pl.ToggleReverse()
	case 'c':
		pl.Clear()
	case 'm':
		pl.SetMode((p.Mode + 1) % (looper.RecordClear + 1))
	case 's':
		pl.SetSnap((p.Snap + 1) % (looper.SnapQuarter + 1))
	case 't':
		pl.SetTrigger(1 - p.Trigger)
	case '+', '=':
		pl.SetMix(p.Mix + 0.1)
	case '-':
		pl.SetMix(p.Mix - 0.1)
	case ' ':
		if err := pl.ToggleTransport(); err != nil {
			log.Print(err)
			return true
		}
		log.Printf("transport playing=%v", pl.Transport().IsPlaying)
		return true
	case 'w':
		if err := pl.RewindTransport(); err != nil {
			log.Print(err)
		}
		return true
	case '[', ']':
		bpm, ok := pl.Tempo()
		if !ok {
			log.Print("no transport; run with -bpm")
			return true
		}
		if k == '[' {
			bpm -= 5
		} else {
			bpm += 5
		}
		if err := pl.SetTempo(bpm); err != nil {
			log.Print(err)
			return true
		}
		log.Printf("tempo %.0f bpm", bpm)
		return true
	case '<', '>':
		db, ok := pl.Limit()
		if !ok {
			log.Print("no limiter; run with -limit")
			return true
		}
		if k == '<' {
			db--
		} else {
			db++
		}
		if err := pl.SetLimit(db); err != nil {
			log.Print(err)
			return true
		}
		log.Printf("limit %.0f dB", db)
		return true
	default:
		return true
	}
	logParams(pl.Params())
	return true
}

func logParams(p looper.Params) {
	log.Printf("rec=%v play=%v reverse=%v mode=%s snap=%s trigger=%s mix=%.0f%%",
		p.Record, p.Play, p.Reverse, p.Mode, p.Snap, p.Trigger, p.Mix*100)
}

func readKeys(r io.Reader, keys chan<- byte) {
	defer close(keys)
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 1 {
			keys <- buf[0]
		}
	}
}

type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	_, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n"))
	return len(p), err
}

func loadClip(path string) (*audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return audio.DecodeWAV(f)
}

func parseSignature(s string) (uint, uint, error) {
	var top, bottom uint
	if _, err := fmt.Sscanf(s, "%d/%d", &top, &bottom); err != nil || top == 0 || bottom == 0 {
		return 0, 0, fmt.Errorf("invalid -sig %q (expected e.g. 4/4 or 6/8)", s)
	}
	return top, bottom, nil
}
