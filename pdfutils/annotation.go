package pdfutils

import (
	"math"

	"github.com/golang/geo/r2"
)

const (
	Highlight   string = "highlight"
	Strike             = "strike"
	Underline          = "underline"
	Text               = "text"
	Rectangle          = "rectangle"
	Image              = "image"
	Region             = "region"
	Unsupported        = "unsupported"
)

// Position is a rectangle in document space: page-local points with the
// origin at the top-left corner of the unrotated page.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func PositionFromRect(r r2.Rect) Position {
	if r.IsEmpty() {
		return Position{}
	}

	s := r.Size()

	return Position{
		X:      r.X.Lo,
		Y:      r.Y.Lo,
		Width:  s.X,
		Height: s.Y,
	}
}

func (p Position) Rect() r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: p.X, Y: p.Y},
		r2.Point{X: p.X + p.Width, Y: p.Y + p.Height},
	)
}

// Rounded trims coordinates to two decimals for stable output.
func (p Position) Rounded() Position {
	return Position{
		X:      round2(p.X),
		Y:      round2(p.Y),
		Width:  round2(p.Width),
		Height: round2(p.Height),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

type Annotation struct {
	ID            string   `json:"id"`
	Page          int      `json:"page"`
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	Color         string   `json:"color,omitempty"`
	ColorCategory string   `json:"colorCategory,omitempty"`
	AnnotatedText string   `json:"annotatedText,omitempty"`
	Date          string   `json:"date,omitempty"`
	ImagePath     string   `json:"imagePath,omitempty"`
	Position      Position `json:"position"`
}

// ByPosition orders annotations top to bottom, left to right, page by page.
type ByPosition []*Annotation

func (a ByPosition) Len() int { return len(a) }
func (a ByPosition) Less(i, j int) bool {
	if a[i].Page != a[j].Page {
		return a[i].Page < a[j].Page
	}
	if a[i].Position.Y != a[j].Position.Y {
		return a[i].Position.Y < a[j].Position.Y
	}
	return a[i].Position.X < a[j].Position.X
}
func (a ByPosition) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
