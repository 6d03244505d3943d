package pdfutils

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
)

func pageRotation(page *model.PdfPage) int64 {
	if page.Rotate == nil {
		return 0
	}

	return ((*page.Rotate % 360) + 360) % 360
}

// PageSize returns the displayed width and height of a page in points,
// with the page's own /Rotate applied.
func PageSize(page *model.PdfPage) (float64, float64) {
	box, err := page.GetMediaBox()
	if err != nil || box == nil {
		return 0, 0
	}

	width := box.Width()
	height := box.Height()

	if angle := pageRotation(page); angle == 90 || angle == 270 {
		return height, width
	}

	return width, height
}

func ApplyPageRotation(page *model.PdfPage, rect []float64) []float64 {
	angle := pageRotation(page)
	if angle == 0 {
		return rect
	}

	box, err := page.GetMediaBox()
	if err != nil || box == nil {
		return rect
	}

	width := box.Width()
	height := box.Height()

	if angle == 90 {
		return []float64{rect[1], width - rect[2], rect[3], width - rect[0]}
	}

	if angle == 270 {
		return []float64{height - rect[3], rect[0], height - rect[1], rect[2]}
	}

	// 180
	return []float64{width - rect[2], height - rect[3], width - rect[0], height - rect[1]}
}

// ToDocumentSpace converts a PDF rect (llx, lly, urx, ury in user space)
// into a top-left origin Position on the displayed page.
func ToDocumentSpace(page *model.PdfPage, rect []float64) Position {
	if len(rect) < 4 {
		return Position{}
	}

	_, height := PageSize(page)
	rotated := ApplyPageRotation(page, rect)

	x1 := math.Min(rotated[0], rotated[2])
	x2 := math.Max(rotated[0], rotated[2])
	y1 := height - math.Max(rotated[1], rotated[3])
	y2 := height - math.Min(rotated[1], rotated[3])

	return Position{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}.Rounded()
}

func IsWithinOverlapThresh(annot r2.Rect, mark r2.Rect) bool {
	markSize := getArea(mark)
	if markSize == 0 {
		return false
	}

	intersect := getArea(annot.Intersection(mark))

	return intersect/markSize >= 0.5
}

func getArea(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}

	s := r.Size()
	return s.X * s.Y
}

func GetMarkRect(mark extractor.TextMark) r2.Rect {
	return r2.RectFromPoints(
		r2.Point{
			X: mark.BBox.Llx,
			Y: mark.BBox.Lly,
		},
		r2.Point{
			X: mark.BBox.Urx,
			Y: mark.BBox.Ury,
		},
	)
}

func GetAnnotationRects(annotation *model.PdfAnnotation) []r2.Rect {
	qp := GetQuadPoint(annotation)

	if qp == nil {
		return nil
	}

	coords, err := qp.GetAsFloat64Slice()
	if err != nil {
		return nil
	}

	rects := []r2.Rect{}

	for i := 0; i+8 <= len(coords); i += 8 {
		rects = append(rects, r2.RectFromPoints(
			r2.Point{X: coords[i], Y: coords[i+1]},
			r2.Point{X: coords[i+2], Y: coords[i+3]},
			r2.Point{X: coords[i+4], Y: coords[i+5]},
			r2.Point{X: coords[i+6], Y: coords[i+7]},
		))
	}

	return rects
}

func GetQuadPoint(annotation *model.PdfAnnotation) *core.PdfObjectArray {
	ctx := annotation.GetContext()

	switch GetAnnotationType(ctx) {
	case Highlight:
		if qp, ok := ctx.(*model.PdfAnnotationHighlight).QuadPoints.(*core.PdfObjectArray); ok {
			return qp
		}
	case Strike:
		if qp, ok := ctx.(*model.PdfAnnotationStrikeOut).QuadPoints.(*core.PdfObjectArray); ok {
			return qp
		}
	case Underline:
		if qp, ok := ctx.(*model.PdfAnnotationUnderline).QuadPoints.(*core.PdfObjectArray); ok {
			return qp
		}
	}

	return nil
}

// GetAnnotationRect returns the annotation's /Rect as llx, lly, urx, ury.
func GetAnnotationRect(annotation *model.PdfAnnotation) []float64 {
	objArr, ok := annotation.Rect.(*core.PdfObjectArray)
	if !ok {
		return nil
	}

	annotRect, err := objArr.ToFloat64Array()
	if err != nil || len(annotRect) < 4 {
		return nil
	}

	return annotRect
}

func GetBoundsFromAnnotMarks(annotRect r2.Rect, markRects []r2.Rect) r2.Rect {
	bound := r2.EmptyRect()

	for _, mark := range markRects {
		if !mark.IsValid() || mark.IsEmpty() {
			continue
		}

		if annotRect.Intersects(mark) && IsWithinOverlapThresh(annotRect, mark) {
			bound = bound.Union(mark)
		}
	}

	return bound
}
