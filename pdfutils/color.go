package pdfutils

import (
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"
)

// DefaultColor is the highlight yellow used for new annotations.
const DefaultColor = "#ffe17f"

// FillAlpha is the translucency applied to annotation fills.
const FillAlpha = 0x50

func toHEXStr(i int) string {
	s := fmt.Sprintf("%x", i)

	if len(s) == 1 {
		return "0" + s
	}

	return s
}

func pdfObjToColor(c core.PdfObject) (colorful.Color, bool) {
	if c == nil {
		return colorful.Color{}, false
	}

	objArr, ok := c.(*core.PdfObjectArray)
	if !ok {
		return colorful.Color{}, false
	}

	clr, err := objArr.ToFloat64Array()
	if err != nil {
		return colorful.Color{}, false
	}

	if len(clr) < 3 {
		return colorful.Color{}, false
	}

	return colorful.Color{R: clr[0], G: clr[1], B: clr[2]}, true
}

func PDFObjToHex(c core.PdfObject) string {
	clr, ok := pdfObjToColor(c)
	if !ok {
		return ""
	}

	return "#" + toHEXStr(int(clr.R*255)) + toHEXStr(int(clr.G*255)) + toHEXStr(int(clr.B*255))
}

func PDFObjToColorCategory(c core.PdfObject) string {
	clr, ok := pdfObjToColor(c)
	if !ok {
		return ""
	}

	return ColorCategory(clr)
}

func annotationColorObj(annotation *model.PdfAnnotation) core.PdfObject {
	if annotation == nil {
		return nil
	}

	ctx := annotation.GetContext()

	switch GetAnnotationType(ctx) {
	case Highlight:
		return ctx.(*model.PdfAnnotationHighlight).C
	case Strike:
		return ctx.(*model.PdfAnnotationStrikeOut).C
	case Underline:
		return ctx.(*model.PdfAnnotationUnderline).C
	case Rectangle:
		return ctx.(*model.PdfAnnotationSquare).C
	case Text:
		return ctx.(*model.PdfAnnotationText).C
	}

	return nil
}

func GetAnnotationColor(annotation *model.PdfAnnotation) string {
	return PDFObjToHex(annotationColorObj(annotation))
}

func GetAnnotationColorCategory(annotation *model.PdfAnnotation) string {
	return PDFObjToColorCategory(annotationColorObj(annotation))
}

// ColorCategory buckets a color into a human readable name by HSL.
func ColorCategory(color colorful.Color) string {
	h, s, l := color.Hsl()

	if l < 0.12 {
		return "Black"
	}
	if l > 0.98 {
		return "White"
	}
	if s < 0.2 {
		return "Gray"
	}
	if h < 15 {
		return "Red"
	}
	if h < 45 {
		return "Orange"
	}
	if h < 65 {
		return "Yellow"
	}
	if h < 170 {
		return "Green"
	}
	if h < 190 {
		return "Cyan"
	}
	if h < 263 {
		return "Blue"
	}
	if h < 280 {
		return "Purple"
	}
	if h < 335 {
		return "Magenta"
	}
	return "Red"
}

// NormalizeColor parses a color token (#rgb or #rrggbb) and returns it in
// lowercase #rrggbb form.
func NormalizeColor(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("empty color token")
	}

	if !strings.HasPrefix(token, "#") {
		token = "#" + token
	}

	clr, err := colorful.Hex(token)
	if err != nil {
		return "", fmt.Errorf("invalid color token %q: %w", token, err)
	}

	return clr.Hex(), nil
}

// TokenColorCategory is ColorCategory for a hex token; unknown tokens map
// to an empty category.
func TokenColorCategory(token string) string {
	clr, err := colorful.Hex(token)
	if err != nil {
		return ""
	}

	return ColorCategory(clr)
}

// FillColor appends the fill alpha to a #rrggbb token, yielding #rrggbbaa.
func FillColor(token string) string {
	normalized, err := NormalizeColor(token)
	if err != nil {
		normalized = DefaultColor
	}

	return normalized + toHEXStr(FillAlpha)
}
