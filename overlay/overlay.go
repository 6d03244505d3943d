// Package overlay turns pointer drags over a rendered page into rectangular
// annotations and projects stored annotations back onto the page.
//
// Annotations are held in document space. Screen rectangles are computed
// from the current viewport every time they are asked for, so zooming,
// rotating or panning re-projects everything without bookkeeping.
package overlay

import (
	"encoding/json"
	"io"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgmeyers/pdfworkspace/pdfutils"
	"github.com/mgmeyers/pdfworkspace/viewport"
)

// MinSelectionSize is the smallest width and height, in document units, a
// drag must cover to become an annotation. Anything smaller is treated as a
// stray click.
const MinSelectionSize = 10.0

type State int

const (
	Idle State = iota
	Selecting
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Committing:
		return "committing"
	}
	return "unknown"
}

// Source exposes the viewport the overlay is drawn over. The overlay only
// reads it.
type Source interface {
	Snapshot() viewport.Viewport
}

// Selection is an in-progress drag in document space.
type Selection struct {
	Anchor r2.Point
	Cursor r2.Point
}

func (s Selection) Rect() r2.Rect {
	return r2.RectFromPoints(s.Anchor, s.Cursor)
}

// Placed is an annotation together with its current screen rectangle.
type Placed struct {
	Annotation *pdfutils.Annotation
	Screen     r2.Rect
	Fill       string
}

// Frame is everything needed to draw the overlay over one page surface.
type Frame struct {
	Width       int
	Height      int
	Annotations []Placed
	Selection   *r2.Rect
}

type Option func(*Overlay)

func WithColor(token string) Option {
	return func(o *Overlay) {
		if normalized, err := pdfutils.NormalizeColor(token); err == nil {
			o.color = normalized
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Overlay) {
		o.newID = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Overlay) {
		o.logger = logger
	}
}

type Overlay struct {
	source      Source
	state       State
	selection   *Selection
	annotations []*pdfutils.Annotation
	enabled     bool
	color       string
	newID       func() string
	logger      *zap.Logger
}

func New(source Source, opts ...Option) *Overlay {
	o := &Overlay{
		source:  source,
		enabled: true,
		color:   pdfutils.DefaultColor,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *Overlay) State() State {
	return o.state
}

// SetAnnotationMode turns pointer capture on or off. Turning it off drops
// any selection in progress.
func (o *Overlay) SetAnnotationMode(on bool) {
	o.enabled = on

	if !on {
		o.clearSelection()
	}
}

func (o *Overlay) AnnotationMode() bool {
	return o.enabled
}

func (o *Overlay) toDocument(p r2.Point) r2.Point {
	return viewport.ScreenToDocument(p, o.source.Snapshot())
}

func (o *Overlay) PointerDown(p r2.Point) {
	if !o.enabled || o.state != Idle {
		return
	}

	doc := o.toDocument(p)
	o.selection = &Selection{Anchor: doc, Cursor: doc}
	o.state = Selecting
}

func (o *Overlay) PointerMove(p r2.Point) {
	if o.state != Selecting {
		return
	}

	o.selection.Cursor = o.toDocument(p)
}

func (o *Overlay) PointerUp() {
	o.finish()
}

func (o *Overlay) PointerLeave() {
	o.finish()
}

func (o *Overlay) finish() {
	if o.state != Selecting {
		return
	}

	sel := *o.selection
	width := math.Abs(sel.Cursor.X - sel.Anchor.X)
	height := math.Abs(sel.Cursor.Y - sel.Anchor.Y)

	if width > MinSelectionSize && height > MinSelectionSize {
		o.state = Committing
		o.commit(sel)
	} else {
		o.logger.Debug("discarding selection below threshold",
			zap.Float64("width", width),
			zap.Float64("height", height))
	}

	o.clearSelection()
}

func (o *Overlay) commit(sel Selection) {
	page := o.source.Snapshot().PageIndex + 1

	annot := &pdfutils.Annotation{
		ID:            o.newID(),
		Page:          page,
		Type:          pdfutils.Region,
		Color:         o.color,
		ColorCategory: pdfutils.TokenColorCategory(o.color),
		Position:      pdfutils.PositionFromRect(sel.Rect()),
	}

	o.annotations = append(o.annotations, annot)

	o.logger.Debug("annotation created",
		zap.String("id", annot.ID),
		zap.Int("page", page))
}

func (o *Overlay) clearSelection() {
	o.selection = nil
	o.state = Idle
}

// Delete removes the annotation with the given id. Unknown ids are ignored.
func (o *Overlay) Delete(id string) {
	for i, a := range o.annotations {
		if a.ID == id {
			o.annotations = append(o.annotations[:i], o.annotations[i+1:]...)
			return
		}
	}
}

// SetContent replaces the note attached to an annotation and reports whether
// the annotation exists.
func (o *Overlay) SetContent(id string, content string) bool {
	for _, a := range o.annotations {
		if a.ID == id {
			a.Content = content
			return true
		}
	}

	return false
}

// Import adds annotations read from elsewhere, skipping ids already held.
func (o *Overlay) Import(annots []*pdfutils.Annotation) {
	known := make(map[string]bool, len(o.annotations))
	for _, a := range o.annotations {
		known[a.ID] = true
	}

	for _, a := range annots {
		if a == nil || known[a.ID] {
			continue
		}

		copied := *a
		if copied.ID == "" {
			copied.ID = o.newID()
		}

		known[copied.ID] = true
		o.annotations = append(o.annotations, &copied)
	}
}

// Visible returns the annotations on the current page with their screen
// rectangles under the current viewport.
func (o *Overlay) Visible() []Placed {
	v := o.source.Snapshot()
	page := v.PageIndex + 1

	placed := []Placed{}

	for _, a := range o.annotations {
		if a.Page != page {
			continue
		}

		placed = append(placed, Placed{
			Annotation: a,
			Screen:     viewport.DocumentRectToScreen(a.Position.Rect(), v),
			Fill:       pdfutils.FillColor(a.Color),
		})
	}

	return placed
}

// Selection returns the live drag rectangle in screen space.
func (o *Overlay) Selection() (r2.Rect, bool) {
	if o.state != Selecting || o.selection == nil {
		return r2.EmptyRect(), false
	}

	return viewport.DocumentRectToScreen(o.selection.Rect(), o.source.Snapshot()), true
}

// Frame lays the overlay out over a rendered page surface of the given
// pixel size.
func (o *Overlay) Frame(width, height int) Frame {
	f := Frame{
		Width:       width,
		Height:      height,
		Annotations: o.Visible(),
	}

	if sel, ok := o.Selection(); ok {
		f.Selection = &sel
	}

	return f
}

// All returns copies of every annotation, ordered by page and position.
func (o *Overlay) All() []*pdfutils.Annotation {
	out := make([]*pdfutils.Annotation, 0, len(o.annotations))

	for _, a := range o.annotations {
		copied := *a
		copied.Position = copied.Position.Rounded()
		out = append(out, &copied)
	}

	sort.Stable(pdfutils.ByPosition(out))

	return out
}

func (o *Overlay) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(o.All())
}
