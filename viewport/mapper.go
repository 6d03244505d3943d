package viewport

import "github.com/golang/geo/r2"

// The mapper converts between document space (page-local units with a
// top-left origin, independent of zoom) and screen space (pixels inside the
// rendered viewport). Rotation turns the page clockwise about its own
// bounds so a rotated page still starts at the origin.

func effectiveScale(v Viewport) float64 {
	if v.Scale == 0 {
		return 1
	}

	return v.Scale
}

func rotatePoint(p r2.Point, v Viewport) r2.Point {
	switch normalizeRotation(v.Rotation) {
	case 90:
		return r2.Point{X: v.PageHeight - p.Y, Y: p.X}
	case 180:
		return r2.Point{X: v.PageWidth - p.X, Y: v.PageHeight - p.Y}
	case 270:
		return r2.Point{X: p.Y, Y: v.PageWidth - p.X}
	}

	return p
}

func unrotatePoint(p r2.Point, v Viewport) r2.Point {
	switch normalizeRotation(v.Rotation) {
	case 90:
		return r2.Point{X: p.Y, Y: v.PageHeight - p.X}
	case 180:
		return r2.Point{X: v.PageWidth - p.X, Y: v.PageHeight - p.Y}
	case 270:
		return r2.Point{X: v.PageWidth - p.Y, Y: p.X}
	}

	return p
}

func DocumentToScreen(p r2.Point, v Viewport) r2.Point {
	return rotatePoint(p, v).Mul(effectiveScale(v)).Add(v.Pan)
}

func ScreenToDocument(p r2.Point, v Viewport) r2.Point {
	return unrotatePoint(p.Sub(v.Pan).Mul(1/effectiveScale(v)), v)
}

func DocumentRectToScreen(r r2.Rect, v Viewport) r2.Rect {
	if r.IsEmpty() {
		return r
	}

	return r2.RectFromPoints(DocumentToScreen(r.Lo(), v), DocumentToScreen(r.Hi(), v))
}

func ScreenRectToDocument(r r2.Rect, v Viewport) r2.Rect {
	if r.IsEmpty() {
		return r
	}

	return r2.RectFromPoints(ScreenToDocument(r.Lo(), v), ScreenToDocument(r.Hi(), v))
}

// ScreenDelta is the pan movement between two pointer positions.
func ScreenDelta(from, to r2.Point) r2.Point {
	return to.Sub(from)
}

// SurfaceSize is the pixel size of the page as rendered under v.
func SurfaceSize(v Viewport) (float64, float64) {
	s := effectiveScale(v)
	w, h := v.PageWidth*s, v.PageHeight*s

	if r := normalizeRotation(v.Rotation); r == 90 || r == 270 {
		return h, w
	}

	return w, h
}
