package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/looperfx-go"
	"github.com/cbegin/looperfx-go/internal/audio"
	"github.com/cbegin/looperfx-go/internal/control"
	"github.com/cbegin/looperfx-go/internal/looper"
)

const (
	windowW      = 980
	windowH      = 560
	uiSampleRate = 48000
)

type button int

const (
	buttonRecord button = iota
	buttonPlay
	buttonReverse
	buttonClear
	buttonMode
	buttonSnap
	buttonTrigger
	buttonTransport
	numButtons
)

type game struct {
	player *looperfx.Player
	events <-chan looperfx.Event
	text   *textRenderer

	draggingMix bool
	lastEvent   string
	statusErr   bool
	viewW       int
	viewH       int
}

func newGame(pl *looperfx.Player) *game {
	return &game{
		player:    pl,
		events:    pl.Watch(),
		text:      newTextRenderer(),
		lastEvent: "Ready",
		viewW:     windowW,
		viewH:     windowH,
	}
}

func (g *game) Update() error {
	g.pollEvents()
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			g.lastEvent = fmt.Sprintf("%s, loop %.2fs", ev.Kind, float64(ev.LoopLength)/uiSampleRate)
			g.statusErr = false
		default:
			return
		}
	}
}

var keyBindings = map[ebiten.Key]button{
	ebiten.KeyR:     buttonRecord,
	ebiten.KeyP:     buttonPlay,
	ebiten.KeyV:     buttonReverse,
	ebiten.KeyC:     buttonClear,
	ebiten.KeyM:     buttonMode,
	ebiten.KeyS:     buttonSnap,
	ebiten.KeyT:     buttonTrigger,
	ebiten.KeySpace: buttonTransport,
}

func (g *game) handleKeys() {
	for k, b := range keyBindings {
		if inpututil.IsKeyJustPressed(k) {
			g.press(b)
		}
	}
	mix := g.player.Params().Mix
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		g.player.SetMix(mix + 0.05)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		g.player.SetMix(mix - 0.05)
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		for b, rect := range l.buttons {
			if pointInRect(mx, my, rect) {
				g.press(button(b))
				return
			}
		}
		if pointInRect(mx, my, l.mix) {
			g.draggingMix = true
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.draggingMix = false
	}
	if g.draggingMix {
		g.updateMixFromMouse(mx, l.mix)
	}
}

func (g *game) press(b button) {
	p := g.player.Params()
	switch b {
	case buttonRecord:
		g.player.ToggleRecord()
	case buttonPlay:
		g.player.TogglePlay()
	case buttonReverse:
		g.player.ToggleReverse()
	case buttonClear:
		g.player.Clear()
	case buttonMode:
		g.player.SetMode((p.Mode + 1) % (looper.RecordClear + 1))
	case buttonSnap:
		g.player.SetSnap((p.Snap + 1) % (looper.SnapQuarter + 1))
	case buttonTrigger:
		g.player.SetTrigger(1 - p.Trigger)
	case buttonTransport:
		if err := g.player.ToggleTransport(); err != nil {
			g.setError(err.Error())
		}
	}
}

func (g *game) setError(msg string) {
	g.lastEvent = msg
	g.statusErr = true
}

type uiLayout struct {
	buttons [numButtons]image.Rectangle
	mix     image.Rectangle
	meters  image.Rectangle
	status  image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	pad := 20
	rowH := 44
	var l uiLayout
	w := max(g.viewW, windowW)
	bw := (w - 2*pad - 3*12) / 4
	for i := range l.buttons {
		col, row := i%4, i/4
		x := pad + col*(bw+12)
		y := pad + row*(rowH+12)
		l.buttons[i] = image.Rect(x, y, x+bw, y+rowH)
	}
	mixTop := pad + 2*(rowH+12)
	l.mix = image.Rect(pad, mixTop, w-pad, mixTop+rowH)
	statusTop := max(g.viewH, windowH) - pad - 40
	l.meters = image.Rect(pad, l.mix.Max.Y+12, w-pad, statusTop-12)
	l.status = image.Rect(pad, statusTop, w-pad, statusTop+40)
	return l
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()
	p := g.player.Params()
	st := g.player.Status()
	tr := g.player.Transport()

	g.text.drawButton(screen, l.buttons[buttonRecord], "Rec", faceFor(st.Recording, p.Record, recordColor), st.Recording)
	g.text.drawButton(screen, l.buttons[buttonPlay], "Play", faceFor(st.Playing, p.Play, playColor), st.Playing)
	g.text.drawButton(screen, l.buttons[buttonReverse], "Reverse", faceFor(p.Reverse, false, highlightColor), p.Reverse)
	g.text.drawButton(screen, l.buttons[buttonClear], "Clear", buttonColor, false)
	g.text.drawButton(screen, l.buttons[buttonMode], "Mode "+control.Inputs[control.ParamMode].Label(float64(p.Mode)), buttonColor, false)
	g.text.drawButton(screen, l.buttons[buttonSnap], "Snap "+control.Inputs[control.ParamSnap].Label(float64(p.Snap)), buttonColor, false)
	g.text.drawButton(screen, l.buttons[buttonTrigger], control.Inputs[control.ParamTrigger].Label(float64(p.Trigger)), buttonColor, false)
	transportLabel := "No Tempo"
	if tr != nil {
		transportLabel = fmt.Sprintf("%.0f bpm %d/%d", tr.BPM, tr.TimeSigTop, tr.TimeSigBottom)
	}
	g.text.drawButton(screen, l.buttons[buttonTransport], transportLabel, faceFor(tr != nil && tr.IsPlaying, false, playColor), tr != nil && tr.IsPlaying)

	g.drawMixSlider(screen, l.mix, p.Mix)

	drawPanel(screen, l.meters)
	rowH := l.meters.Dy() / 3
	// the last three status outputs are the head and fill meters
	values := st.Values()
	for i, c := range []color.Color{playColor, recordColor, highlightColor} {
		out := i + 2
		y := l.meters.Min.Y + i*rowH
		g.text.drawMeter(screen, image.Rect(l.meters.Min.X+12, y+4, l.meters.Max.X-12, y+rowH-4), control.Outputs[out], values[out], c)
	}

	drawSunkenPanel(screen, l.status)
	elapsed := g.player.Elapsed().Truncate(time.Second)
	msg := fmt.Sprintf("%s  Status: %s", elapsed, g.lastEvent)
	if g.statusErr {
		msg = fmt.Sprintf("%s  Status: ERROR - %s", elapsed, g.lastEvent)
	}
	g.text.draw(screen, msg, l.status.Min.X+8, l.status.Min.Y+6)
}

func faceFor(on, armed bool, onColor color.Color) color.Color {
	switch {
	case on:
		return onColor
	case armed:
		return armedColor
	}
	return buttonColor
}

func (g *game) drawMixSlider(screen *ebiten.Image, rect image.Rectangle, mix float64) {
	drawPanel(screen, rect)
	g.text.draw(screen, "Mix "+control.Inputs[control.ParamMix].Label(mix), rect.Min.X+8, rect.Min.Y+8)
	trackX := rect.Min.X + 150
	trackW := rect.Dx() - 166
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	fillRect(screen, image.Rect(trackX, trackY, trackX+trackW, trackY+8), bevelDarker)
	fillW := int(float64(trackW) * clamp(mix, 0, 1))
	if fillW > 2 {
		fillRect(screen, image.Rect(trackX+1, trackY+1, trackX+fillW, trackY+7), sliderFillColor)
	}
	knobX := min(max(trackX+fillW-5, trackX-5), trackX+trackW-5)
	knob := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	fillRect(screen, knob, panelColor)
	drawBorder(screen, knob)
}

func (g *game) updateMixFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 150
	trackW := rect.Dx() - 166
	if trackW <= 0 {
		return
	}
	g.player.SetMix(clamp(float64(mx-trackX)/float64(trackW), 0, 1))
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, windowW)
	g.viewH = max(outsideH, windowH)
	return g.viewW, g.viewH
}

func main() {
	var (
		presetPath = flag.String("preset", "", "path to a YAML preset")
		inputPath  = flag.String("input", "", "WAV file looped as input")
		bpm        = flag.Float64("bpm", 0, "transport tempo; 0 disables snap")
		top        = flag.Uint("top", 4, "time signature numerator")
		bottom     = flag.Uint("bottom", 4, "time signature denominator")
	)
	flag.Parse()

	preset := control.DefaultPreset()
	if *presetPath != "" {
		var err error
		if preset, err = control.LoadPreset(*presetPath); err != nil {
			log.Fatal(err)
		}
	}
	opts := []looperfx.PlayerOption{looperfx.WithPreset(preset), looperfx.WithLimiter(-1)}
	if *bpm > 0 {
		opts = append(opts, looperfx.WithTempo(*bpm, *top, *bottom))
	}
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal(err)
		}
		clip, err := audio.DecodeWAV(f)
		f.Close()
		if err != nil {
			log.Fatalf("read %q: %v", *inputPath, err)
		}
		if clip.SampleRate != uiSampleRate {
			log.Fatalf("%s is %d Hz; the UI runs at %d Hz", *inputPath, clip.SampleRate, uiSampleRate)
		}
		opts = append(opts, looperfx.WithInput(audio.NewClipSource(clip, true)))
	}

	pl, err := looperfx.NewPlayer(uiSampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Stop()
	g := newGame(pl)
	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(windowW, windowH, -1, -1)
	ebiten.SetWindowTitle("looperfx")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
