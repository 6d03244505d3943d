package render

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotate turns img clockwise by a multiple of 90 degrees. Other angles are
// rounded down to the previous quarter turn.
func Rotate(img image.Image, degrees int) image.Image {
	quarter := ((degrees % 360) + 360) % 360 / 90

	if quarter == 0 {
		return img
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	var dst *image.RGBA
	var m f64.Aff3

	switch quarter {
	case 1:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		m = f64.Aff3{0, -1, h, 1, 0, 0}
	case 2:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		m = f64.Aff3{-1, 0, w, 0, -1, h}
	case 3:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		m = f64.Aff3{0, 1, 0, -1, 0, w}
	}

	// the matrix works on coordinates relative to the source origin
	m[2] -= m[0]*float64(b.Min.X) + m[1]*float64(b.Min.Y)
	m[5] -= m[3]*float64(b.Min.X) + m[4]*float64(b.Min.Y)

	draw.NearestNeighbor.Transform(dst, m, img, b, draw.Src, nil)

	return dst
}
