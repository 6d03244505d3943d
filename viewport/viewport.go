// Package viewport tracks how a paginated document is presented: which page
// is showing, at what zoom and rotation, and how far it has been panned.
//
// A Controller is created per loaded document and is the only writer of its
// Viewport. Every operation is total: out of range input is clamped or
// ignored, never reported as an error.
//
// Zoom is anchored at the top-left corner of the page: changing the scale
// leaves the pan offset untouched.
package viewport

import (
	"math"

	"github.com/golang/geo/r2"
)

const (
	MinScale        = 0.5
	MaxScale        = 2.5
	DefaultScale    = 1.0
	DefaultZoomStep = 0.1
	LargeZoomStep   = 0.2
	RotationStep    = 90
	fullRotation    = 360
	scalePrecision  = 100
)

// Viewport is a value snapshot of the presentation state.
type Viewport struct {
	PageIndex int
	PageCount int
	Scale     float64
	Rotation  int
	Pan       r2.Point

	// Size of the current page in document units, unrotated.
	PageWidth  float64
	PageHeight float64
}

// PageRequest is what the page renderer needs to draw the current page.
type PageRequest struct {
	PageIndex int
	Scale     float64
	Rotation  int
}

// PageSizer reports the unrotated size of a page in document units.
type PageSizer interface {
	PageSize(pageIndex int) (float64, float64)
}

type Controller struct {
	view      Viewport
	sizer     PageSizer
	panning   bool
	lastPan   r2.Point
	maxPage   int
	listeners []func(PageRequest)
}

// NewController creates a controller for a document with pageCount pages.
// sizer may be nil when page sizes are unknown.
func NewController(pageCount int, sizer PageSizer) *Controller {
	if pageCount < 0 {
		pageCount = 0
	}

	c := &Controller{
		view: Viewport{
			PageCount: pageCount,
			Scale:     DefaultScale,
		},
		sizer: sizer,
	}
	c.loadPageSize(&c.view)

	return c
}

// OnChange registers fn to be called whenever the page, scale or rotation
// changes.
func (c *Controller) OnChange(fn func(PageRequest)) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Snapshot() Viewport {
	return c.view
}

func (c *Controller) Request() PageRequest {
	return PageRequest{
		PageIndex: c.view.PageIndex,
		Scale:     c.view.Scale,
		Rotation:  c.view.Rotation,
	}
}

// Progress is the share of the document reached so far, in [0, 1].
func (c *Controller) Progress() float64 {
	if c.view.PageCount == 0 {
		return 0
	}

	return float64(c.maxPage+1) / float64(c.view.PageCount)
}

func (c *Controller) loadPageSize(v *Viewport) {
	if c.sizer == nil || v.PageCount == 0 {
		return
	}

	v.PageWidth, v.PageHeight = c.sizer.PageSize(v.PageIndex)
}

func (c *Controller) update(fn func(v *Viewport)) {
	before := c.Request()
	fn(&c.view)

	if after := c.Request(); after != before {
		for _, l := range c.listeners {
			l(after)
		}
	}
}

func (c *Controller) GoToPage(n int) {
	if n < 0 || n >= c.view.PageCount {
		return
	}

	c.update(func(v *Viewport) {
		v.PageIndex = n
		v.Pan = r2.Point{}
		c.loadPageSize(v)
	})

	if n > c.maxPage {
		c.maxPage = n
	}
}

func (c *Controller) NextPage() {
	if c.view.PageIndex+1 < c.view.PageCount {
		c.GoToPage(c.view.PageIndex + 1)
	}
}

func (c *Controller) PreviousPage() {
	if c.view.PageIndex > 0 {
		c.GoToPage(c.view.PageIndex - 1)
	}
}

func (c *Controller) FirstPage() {
	c.GoToPage(0)
}

func (c *Controller) LastPage() {
	c.GoToPage(c.view.PageCount - 1)
}

func clampScale(s float64) float64 {
	if math.IsNaN(s) {
		return DefaultScale
	}

	s = math.Round(s*scalePrecision) / scalePrecision

	return math.Max(MinScale, math.Min(MaxScale, s))
}

func (c *Controller) SetScale(s float64) {
	c.update(func(v *Viewport) {
		v.Scale = clampScale(s)
	})
}

// ZoomIn raises the scale by step, or by DefaultZoomStep when step <= 0.
func (c *Controller) ZoomIn(step float64) {
	if step <= 0 {
		step = DefaultZoomStep
	}

	c.SetScale(c.view.Scale + step)
}

// ZoomOut lowers the scale by step, or by DefaultZoomStep when step <= 0.
func (c *Controller) ZoomOut(step float64) {
	if step <= 0 {
		step = DefaultZoomStep
	}

	c.SetScale(c.view.Scale - step)
}

func (c *Controller) ResetZoom() {
	c.SetScale(DefaultScale)
}

func normalizeRotation(r int) int {
	return ((r % fullRotation) + fullRotation) % fullRotation
}

func (c *Controller) Rotate() {
	c.update(func(v *Viewport) {
		v.Rotation = normalizeRotation(v.Rotation + RotationStep)
	})
}

func (c *Controller) RotateCounterclockwise() {
	c.update(func(v *Viewport) {
		v.Rotation = normalizeRotation(v.Rotation - RotationStep)
	})
}

func (c *Controller) BeginPan(p r2.Point) {
	c.panning = true
	c.lastPan = p
}

// UpdatePan moves the page by the distance the pointer travelled since the
// previous call. It does nothing unless a pan is active.
func (c *Controller) UpdatePan(p r2.Point) {
	if !c.panning {
		return
	}

	c.view.Pan = c.view.Pan.Add(ScreenDelta(c.lastPan, p))
	c.lastPan = p
}

func (c *Controller) EndPan() {
	c.panning = false
}

func (c *Controller) Panning() bool {
	return c.panning
}
