package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const (
	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	bgColor        = color.RGBA{192, 192, 192, 255}
	panelColor     = color.RGBA{192, 192, 192, 255}
	borderColor    = color.RGBA{128, 128, 128, 255}
	buttonColor    = color.RGBA{192, 192, 192, 255}
	recordColor    = color.RGBA{176, 32, 32, 255}
	playColor      = color.RGBA{32, 128, 48, 255}
	armedColor     = color.RGBA{200, 140, 40, 255}
	highlightColor = color.RGBA{0, 0, 128, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
)

type textRenderer struct {
	cache map[string]*ebiten.Image
}

func newTextRenderer() *textRenderer {
	return &textRenderer{cache: make(map[string]*ebiten.Image, 256)}
}

func (t *textRenderer) draw(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := t.cache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(t.cache) > 1000 {
			t.cache = make(map[string]*ebiten.Image, 256)
		}
		t.cache[msg] = img
	}
	// Embossed shadow.
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func fillRect(screen *ebiten.Image, rect image.Rectangle, c color.Color) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), c)
}

func drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, panelColor)
	drawBorder(screen, rect)
}

func drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

// drawButton draws a raised button; lit buttons get a colored face and a
// sunken border.
func (t *textRenderer) drawButton(screen *ebiten.Image, rect image.Rectangle, label string, face color.Color, lit bool) {
	fillRect(screen, rect, face)
	if lit {
		drawSunkenBorder(screen, rect)
	} else {
		drawBorder(screen, rect)
	}
	labelW := len([]rune(label)) * charW
	t.draw(screen, label, rect.Min.X+(rect.Dx()-labelW)/2, rect.Min.Y+(rect.Dy()-lineH)/2)
}

// drawMeter draws a labelled horizontal bar for v in [0,1].
func (t *textRenderer) drawMeter(screen *ebiten.Image, rect image.Rectangle, label string, v float64, fill color.Color) {
	t.draw(screen, label, rect.Min.X, rect.Min.Y+(rect.Dy()-lineH)/2)
	track := image.Rect(rect.Min.X+150, rect.Min.Y+6, rect.Max.X, rect.Max.Y-6)
	if track.Dx() <= 2 {
		return
	}
	drawSunkenPanel(screen, track)
	w := int(float64(track.Dx()-4) * clamp(v, 0, 1))
	if w > 0 {
		fillRect(screen, image.Rect(track.Min.X+2, track.Min.Y+2, track.Min.X+2+w, track.Max.Y-2), fill)
	}
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}
