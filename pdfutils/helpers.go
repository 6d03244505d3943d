package pdfutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
)

var dateLayouts = []string{
	"D:20060102150405Z0700",
	"D:20060102150405Z07",
	"D:20060102150405",
	"D:200601021504",
	"D:20060102",
}

// ParseDate parses a PDF date string such as D:20230115103000+05'30'. It
// returns nil when none of the known layouts match.
func ParseDate(str string) *time.Time {
	normalized := strings.TrimSpace(strings.ReplaceAll(str, "'", ""))

	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, normalized); err == nil {
			return &date
		}
	}

	split := strings.Split(normalized, "Z")
	if date, err := time.Parse("D:20060102150405", split[0]); err == nil {
		return &date
	}

	return nil
}

func GetAnnotationDate(annot *model.PdfAnnotation) *time.Time {
	if annot.M == nil {
		return nil
	}

	return ParseDate(annot.M.String())
}

func GetAnnotationType(t interface{}) string {
	switch t.(type) {
	case *model.PdfAnnotationHighlight:
		return Highlight
	case *model.PdfAnnotationStrikeOut:
		return Strike
	case *model.PdfAnnotationUnderline:
		return Underline
	case *model.PdfAnnotationSquare:
		return Rectangle
	case *model.PdfAnnotationText:
		return Text
	default:
		return Unsupported
	}
}

func RemoveNul(str string) string {
	return strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, str)
}

// GetMarkedText joins the text marks covered by the annotation rects.
func GetMarkedText(text string, annoRects []r2.Rect, markRects []r2.Rect, marks []extractor.TextMark) string {
	segment := ""

	for _, anno := range annoRects {
		if !anno.IsValid() || anno.IsEmpty() {
			continue
		}

		for i, mark := range markRects {
			if !mark.IsValid() || mark.IsEmpty() {
				continue
			}

			if !anno.Intersects(mark) || !IsWithinOverlapThresh(anno, mark) {
				continue
			}

			if len(marks[i].Text) > 0 && marks[i].Offset > 0 && marks[i].Offset <= len(text) && len(segment) > 0 {
				prevChar := text[marks[i].Offset-1]

				if prevChar == ' ' || prevChar == '\n' {
					segment += " " + marks[i].Text
					continue
				}
			}

			segment += marks[i].Text
		}
	}

	return CondenseSpaces(strings.TrimSpace(segment))
}

func GetAnnotationID(ids map[string]bool, pageIndex int, x float64, y float64, annotType string) string {
	xInt := int(x)
	yInt := int(y)
	id := fmt.Sprintf("%s-p%dx%dy%d", annotType, pageIndex+1, xInt, yInt)
	_, ok := ids[id]

	for i := 1; ok; i++ {
		id = fmt.Sprintf("%s-p%dx%dy%d-%d", annotType, pageIndex+1, xInt, yInt, i)
		_, ok = ids[id]
	}

	ids[id] = true

	return id
}

var nlAndSpace = regexp.MustCompile(`[\n\s]+`)

func CondenseSpaces(str string) string {
	return nlAndSpace.ReplaceAllString(str, " ")
}
