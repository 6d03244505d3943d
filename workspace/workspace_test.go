package workspace

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmeyers/pdfworkspace/overlay"
	"github.com/mgmeyers/pdfworkspace/pdfutils"
)

type fakeDoc struct {
	pages int
}

func (d fakeDoc) PageCount() int                  { return d.pages }
func (d fakeDoc) PageSize(int) (float64, float64) { return 600, 800 }

func ids() overlay.Option {
	return overlay.WithIDGenerator(func() string { return "a1" })
}

const script = `
- op: key
  key: ArrowRight
- op: zoom-in
- op: zoom-in
  step: 0.4
- op: reset-zoom
- op: pointer-down
  x: 10
  y: 20
- op: pointer-move
  x: 60
  y: 80
- op: pointer-up
- op: set-content
  id: a1
  content: see figure 2
`

func TestReplayScript(t *testing.T) {
	events, err := DecodeEvents(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, events, 8)
	assert.Equal(t, 0.4, events[2].Step)

	w := New(fakeDoc{pages: 3}, WithOverlayOptions(ids()))
	require.NoError(t, w.Replay(events))

	all := w.Overlay.All()
	require.Len(t, all, 1)

	want := &pdfutils.Annotation{
		ID:            "a1",
		Page:          2,
		Type:          pdfutils.Region,
		Content:       "see figure 2",
		Color:         pdfutils.DefaultColor,
		ColorCategory: pdfutils.TokenColorCategory(pdfutils.DefaultColor),
		Position:      pdfutils.Position{X: 10, Y: 20, Width: 50, Height: 60},
	}
	if diff := cmp.Diff(want, all[0]); diff != "" {
		t.Errorf("annotation mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1.0, w.Controller.Snapshot().Scale)
}

func TestZoomStepOption(t *testing.T) {
	w := New(fakeDoc{pages: 1}, WithZoomStep(0.5))
	require.NoError(t, w.Apply(Event{Op: "zoom-in"}))
	assert.Equal(t, 1.5, w.Controller.Snapshot().Scale)
}

func TestPanRoutesPointerMoves(t *testing.T) {
	w := New(fakeDoc{pages: 1})

	require.NoError(t, w.Replay([]Event{
		{Op: "pan-start", X: 0, Y: 0},
		{Op: "pointer-move", X: 30, Y: 40},
		{Op: "pointer-up"},
	}))

	assert.Equal(t, r2.Point{X: 30, Y: 40}, w.Controller.Snapshot().Pan)
	assert.False(t, w.Controller.Panning())
	assert.Empty(t, w.Overlay.All())
}

func TestNavigationEvents(t *testing.T) {
	w := New(fakeDoc{pages: 5})

	require.NoError(t, w.Apply(Event{Op: "goto", Page: 4}))
	assert.Equal(t, 3, w.Controller.Snapshot().PageIndex)

	require.NoError(t, w.Apply(Event{Op: "last"}))
	require.NoError(t, w.Apply(Event{Op: "next"}))
	assert.Equal(t, 4, w.Controller.Snapshot().PageIndex)

	require.NoError(t, w.Apply(Event{Op: "first"}))
	require.NoError(t, w.Apply(Event{Op: "previous"}))
	assert.Equal(t, 0, w.Controller.Snapshot().PageIndex)

	require.NoError(t, w.Apply(Event{Op: "goto", Page: 99}))
	assert.Equal(t, 0, w.Controller.Snapshot().PageIndex)

	require.NoError(t, w.Apply(Event{Op: "rotate"}))
	require.NoError(t, w.Apply(Event{Op: "rotate"}))
	require.NoError(t, w.Apply(Event{Op: "rotate-ccw"}))
	assert.Equal(t, 90, w.Controller.Snapshot().Rotation)

	require.NoError(t, w.Apply(Event{Op: "set-scale", Scale: 9}))
	assert.Equal(t, 2.5, w.Controller.Snapshot().Scale)
}

func TestAnnotationModeEvent(t *testing.T) {
	w := New(fakeDoc{pages: 1})
	off := false

	require.NoError(t, w.Replay([]Event{
		{Op: "annotation-mode", Enabled: &off},
		{Op: "pointer-down"},
		{Op: "pointer-move", X: 50, Y: 50},
		{Op: "pointer-up"},
	}))
	assert.Empty(t, w.Overlay.All())

	require.NoError(t, w.Apply(Event{Op: "annotation-mode"}))
	assert.True(t, w.Overlay.AnnotationMode())
}

func TestDeleteEvent(t *testing.T) {
	w := New(fakeDoc{pages: 1}, WithOverlayOptions(ids()))

	require.NoError(t, w.Replay([]Event{
		{Op: "pointer-down"},
		{Op: "pointer-move", X: 50, Y: 50},
		{Op: "pointer-leave"},
	}))
	require.Len(t, w.Overlay.All(), 1)

	require.NoError(t, w.Apply(Event{Op: "delete", ID: "a1"}))
	assert.Empty(t, w.Overlay.All())
}

func TestUnknownOp(t *testing.T) {
	w := New(fakeDoc{pages: 1})

	err := w.Replay([]Event{{Op: "next"}, {Op: "explode"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
	assert.Contains(t, err.Error(), "explode")
}

func TestDecodeEmpty(t *testing.T) {
	events, err := DecodeEvents(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = DecodeEvents(strings.NewReader("op: [nope"))
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 100, 100))
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			page.Set(x, y, white)
		}
	}

	sel := r2.RectFromPoints(r2.Point{X: 70, Y: 70}, r2.Point{X: 90, Y: 90})
	frame := overlay.Frame{
		Width:  100,
		Height: 100,
		Annotations: []overlay.Placed{{
			Annotation: &pdfutils.Annotation{Color: "#ff0000"},
			Screen:     r2.RectFromPoints(r2.Point{X: 15, Y: 15}, r2.Point{X: 35, Y: 35}),
		}},
		Selection: &sel,
	}

	out := Compose(page, frame, 5, 5)

	assert.Equal(t, white, out.RGBAAt(5, 5), "outside any rectangle")

	tinted := out.RGBAAt(15, 15)
	assert.Equal(t, uint8(0xff), tinted.R)
	assert.Less(t, tinted.G, uint8(0xff))
	assert.Less(t, tinted.B, uint8(0xff))

	assert.NotEqual(t, white, out.RGBAAt(70, 70))
	assert.Equal(t, white, out.RGBAAt(95, 95))
}
