package pdfutils

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
)

type PageInfo struct {
	Index    int     `json:"index"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

type DocumentInfo struct {
	PageCount int        `json:"pageCount"`
	Pages     []PageInfo `json:"pages"`
}

// Inspect reports the page count and displayed page sizes of a PDF.
func Inspect(rs io.ReadSeeker) (*DocumentInfo, error) {
	pdfReader, err := model.NewPdfReader(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	info := &DocumentInfo{PageCount: numPages}

	for i := 0; i < numPages; i++ {
		page, err := pdfReader.GetPage(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}

		width, height := PageSize(page)
		info.Pages = append(info.Pages, PageInfo{
			Index:    i,
			Width:    round2(width),
			Height:   round2(height),
			Rotation: int(pageRotation(page)),
		})
	}

	return info, nil
}

type ReadOptions struct {
	// Annotations modified before this time are skipped.
	IgnoreBefore time.Time
}

// ReadAnnotations imports the markup annotations of a PDF into document
// space, ordered by page and position.
func ReadAnnotations(rs io.ReadSeeker, opts ReadOptions) ([]*Annotation, error) {
	pdfReader, err := model.NewPdfReader(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	ids := map[string]bool{}
	collected := []*Annotation{}

	for i := 0; i < numPages; i++ {
		page, err := pdfReader.GetPage(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}

		annotations, err := page.GetAnnotations()
		if err != nil {
			return nil, fmt.Errorf("failed to read annotations on page %d: %w", i+1, err)
		}

		if len(annotations) == 0 {
			continue
		}

		collected = append(collected, processAnnotations(i, page, annotations, ids, opts)...)
	}

	sort.Stable(ByPosition(collected))

	return collected, nil
}

type pageText struct {
	text      string
	marks     []extractor.TextMark
	markRects []r2.Rect
}

func extractPageText(page *model.PdfPage) *pageText {
	ext, err := extractor.New(page)
	if err != nil {
		return nil
	}

	txt, _, _, err := ext.ExtractPageText()
	if err != nil {
		return nil
	}

	pt := &pageText{
		text:  txt.Text(),
		marks: txt.Marks().Elements(),
	}

	for _, mark := range pt.marks {
		pt.markRects = append(pt.markRects, GetMarkRect(mark))
	}

	return pt
}

func processAnnotations(
	pageIndex int,
	page *model.PdfPage,
	annotations []*model.PdfAnnotation,
	ids map[string]bool,
	opts ReadOptions,
) []*Annotation {
	annots := []*Annotation{}

	var text *pageText

	for _, annotation := range annotations {
		annotType := GetAnnotationType(annotation.GetContext())

		if annotType == Unsupported {
			continue
		}

		date := GetAnnotationDate(annotation)

		if date != nil && date.Before(opts.IgnoreBefore) {
			continue
		}

		var pos Position
		markedText := ""

		annoRects := GetAnnotationRects(annotation)

		if len(annoRects) > 0 {
			bounds := r2.EmptyRect()
			for _, r := range annoRects {
				bounds = bounds.Union(r)
			}

			pos = ToDocumentSpace(page, []float64{bounds.X.Lo, bounds.Y.Lo, bounds.X.Hi, bounds.Y.Hi})

			if text == nil {
				text = extractPageText(page)
			}

			if text != nil {
				markedText = GetMarkedText(text.text, annoRects, text.markRects, text.marks)
			}
		} else {
			rect := GetAnnotationRect(annotation)
			if rect == nil {
				continue
			}

			pos = ToDocumentSpace(page, rect)
		}

		comment := ""

		if annotation.Contents != nil {
			comment = RemoveNul(annotation.Contents.String())
		}

		built := &Annotation{
			ID:            GetAnnotationID(ids, pageIndex, pos.X, pos.Y, annotType),
			Page:          pageIndex + 1,
			Type:          annotType,
			Content:       comment,
			Color:         GetAnnotationColor(annotation),
			ColorCategory: GetAnnotationColorCategory(annotation),
			AnnotatedText: markedText,
			Position:      pos,
		}

		if date != nil {
			built.Date = date.Format(time.RFC3339)
		}

		annots = append(annots, built)
	}

	return annots
}
