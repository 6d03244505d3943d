// Package workspace ties a loaded document to its viewport controller and
// annotation overlay, and replays recorded interaction events against them.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mgmeyers/pdfworkspace/overlay"
	"github.com/mgmeyers/pdfworkspace/viewport"
)

// Document is the part of a loaded document the workspace needs.
type Document interface {
	viewport.PageSizer
	PageCount() int
}

// Event is one recorded host input. Page is 1-based. Seconds is how far a
// tick moves the workspace clock.
type Event struct {
	Op      string  `yaml:"op"`
	X       float64 `yaml:"x,omitempty"`
	Y       float64 `yaml:"y,omitempty"`
	Step    float64 `yaml:"step,omitempty"`
	Scale   float64 `yaml:"scale,omitempty"`
	Page    int     `yaml:"page,omitempty"`
	Key     string  `yaml:"key,omitempty"`
	ID      string  `yaml:"id,omitempty"`
	Content string  `yaml:"content,omitempty"`
	Enabled *bool   `yaml:"enabled,omitempty"`
	Seconds float64 `yaml:"seconds,omitempty"`
}

func (e Event) point() r2.Point {
	return r2.Point{X: e.X, Y: e.Y}
}

type Option func(*Workspace)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

func WithZoomStep(step float64) Option {
	return func(w *Workspace) {
		if step > 0 {
			w.zoomStep = step
		}
	}
}

func WithOverlayOptions(opts ...overlay.Option) Option {
	return func(w *Workspace) {
		w.overlayOpts = append(w.overlayOpts, opts...)
	}
}

// WithClock drives the study session from now instead of the scripted
// clock. Ticks then only sync the session.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		w.now = now
		w.clock = nil
	}
}

func WithSessionOptions(opts ...SessionOption) Option {
	return func(w *Workspace) {
		w.sessionOpts = append(w.sessionOpts, opts...)
	}
}

type Workspace struct {
	Controller *viewport.Controller
	Overlay    *overlay.Overlay
	Session    *Session

	logger      *zap.Logger
	zoomStep    float64
	overlayOpts []overlay.Option
	sessionOpts []SessionOption
	clock       *ManualClock
	now         func() time.Time
}

// scriptEpoch is where the scripted clock starts.
var scriptEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func New(doc Document, opts ...Option) *Workspace {
	clock := NewManualClock(scriptEpoch)
	w := &Workspace{
		logger:   zap.NewNop(),
		zoomStep: viewport.DefaultZoomStep,
		clock:    clock,
		now:      clock.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.Session = NewSession(append([]SessionOption{WithSessionClock(w.now)}, w.sessionOpts...)...)

	w.Controller = viewport.NewController(doc.PageCount(), doc)
	w.Overlay = overlay.New(w.Controller, append([]overlay.Option{overlay.WithLogger(w.logger)}, w.overlayOpts...)...)

	return w
}

func (w *Workspace) step(e Event) float64 {
	if e.Step > 0 {
		return e.Step
	}
	return w.zoomStep
}

// Apply dispatches one event. Unknown ops are an error; everything else is
// total, as the controller and overlay are.
func (w *Workspace) Apply(e Event) error {
	c := w.Controller
	o := w.Overlay

	if isInput(e.Op) {
		w.Session.Activity()
	}

	switch e.Op {
	case "pointer-down":
		o.PointerDown(e.point())
	case "pointer-move":
		if c.Panning() {
			c.UpdatePan(e.point())
		} else {
			o.PointerMove(e.point())
		}
	case "pointer-up":
		if c.Panning() {
			c.EndPan()
		} else {
			o.PointerUp()
		}
	case "pointer-leave":
		c.EndPan()
		o.PointerLeave()
	case "pan-start":
		c.BeginPan(e.point())
	case "pan-end":
		c.EndPan()
	case "key":
		if !c.HandleKey(e.Key) {
			w.logger.Debug("unbound key", zap.String("key", e.Key))
		}
	case "zoom-in":
		c.ZoomIn(w.step(e))
	case "zoom-out":
		c.ZoomOut(w.step(e))
	case "set-scale":
		c.SetScale(e.Scale)
	case "reset-zoom":
		c.ResetZoom()
	case "rotate":
		c.Rotate()
	case "rotate-ccw":
		c.RotateCounterclockwise()
	case "goto":
		c.GoToPage(e.Page - 1)
	case "next":
		c.NextPage()
	case "previous":
		c.PreviousPage()
	case "first":
		c.FirstPage()
	case "last":
		c.LastPage()
	case "delete":
		o.Delete(e.ID)
	case "set-content":
		if !o.SetContent(e.ID, e.Content) {
			w.logger.Debug("no annotation to update", zap.String("id", e.ID))
		}
	case "annotation-mode":
		on := e.Enabled == nil || *e.Enabled
		o.SetAnnotationMode(on)
	case "tick":
		if w.clock != nil {
			w.clock.Advance(time.Duration(e.Seconds * float64(time.Second)))
		}
		w.Session.Sync()
	case "activity":
	case "timer-toggle":
		w.Session.Sync()
		w.Session.Timer.Toggle()
	case "timer-reset":
		w.Session.Sync()
		w.Session.Timer.Reset()
	default:
		return fmt.Errorf("unknown event op %q", e.Op)
	}

	return nil
}

// isInput reports whether op is user input that counts as activity.
func isInput(op string) bool {
	switch op {
	case "pointer-down", "pointer-move", "pointer-up", "pointer-leave",
		"pan-start", "pan-end", "key", "activity":
		return true
	}
	return false
}

// Summary is the reading state of the workspace.
type Summary struct {
	Page      int          `json:"page"`
	PageCount int          `json:"pageCount"`
	Progress  float64      `json:"progress"`
	Session   SessionState `json:"session"`
}

func (w *Workspace) Summary() Summary {
	w.Session.Sync()
	v := w.Controller.Snapshot()

	return Summary{
		Page:      v.PageIndex + 1,
		PageCount: v.PageCount,
		Progress:  w.Controller.Progress(),
		Session:   w.Session.State(),
	}
}

// Replay applies events in order and stops at the first bad one.
func (w *Workspace) Replay(events []Event) error {
	for i, e := range events {
		if err := w.Apply(e); err != nil {
			return fmt.Errorf("event %d: %w", i+1, err)
		}
	}

	w.logger.Debug("replayed events",
		zap.Int("events", len(events)),
		zap.Int("annotations", len(w.Overlay.All())))

	return nil
}

func DecodeEvents(r io.Reader) ([]Event, error) {
	var events []Event

	if err := yaml.NewDecoder(r).Decode(&events); err != nil {
		if errors.Is(err, io.EOF) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	return events, nil
}

func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()

	return DecodeEvents(f)
}
