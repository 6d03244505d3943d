package workspace

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/mgmeyers/pdfworkspace/overlay"
	"github.com/mgmeyers/pdfworkspace/pdfutils"
)

var selectionColor = color.NRGBA{R: 0x4a, G: 0x90, B: 0xe2, A: pdfutils.FillAlpha}

// Compose paints an overlay frame over a rendered page. pan is the
// viewport pan the frame was laid out with; page pixels start at pan.
func Compose(page image.Image, frame overlay.Frame, panX, panY float64) *image.RGBA {
	b := page.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), page, b.Min, draw.Src)

	for _, p := range frame.Annotations {
		fill := selectionColor
		if clr, err := colorful.Hex(p.Annotation.Color); err == nil {
			r, g, bl := clr.RGB255()
			fill = color.NRGBA{R: r, G: g, B: bl, A: pdfutils.FillAlpha}
		}

		paint(out, p.Screen.Lo().X-panX, p.Screen.Lo().Y-panY, p.Screen.Hi().X-panX, p.Screen.Hi().Y-panY, fill)
	}

	if frame.Selection != nil {
		s := *frame.Selection
		paint(out, s.Lo().X-panX, s.Lo().Y-panY, s.Hi().X-panX, s.Hi().Y-panY, selectionColor)
	}

	return out
}

func paint(dst *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	r := image.Rect(
		int(math.Round(x0)),
		int(math.Round(y0)),
		int(math.Round(x1)),
		int(math.Round(y1)),
	).Intersect(dst.Bounds())

	if r.Empty() {
		return
	}

	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}
