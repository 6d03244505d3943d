package viewport

// Key names follow the DOM KeyboardEvent.key values.
const (
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyPageDown   = "PageDown"
	KeyPageUp     = "PageUp"
	KeyHome       = "Home"
	KeyEnd        = "End"
)

// HandleKey applies the keyboard shortcut bound to key and reports whether
// the key was consumed.
func (c *Controller) HandleKey(key string) bool {
	switch key {
	case KeyArrowRight, KeyPageDown:
		c.NextPage()
	case KeyArrowLeft, KeyPageUp:
		c.PreviousPage()
	case KeyHome:
		c.FirstPage()
	case KeyEnd:
		c.LastPage()
	case "+", "=":
		c.ZoomIn(DefaultZoomStep)
	case "-", "_":
		c.ZoomOut(DefaultZoomStep)
	case "0":
		c.ResetZoom()
	case "r":
		c.Rotate()
	case "R":
		c.RotateCounterclockwise()
	default:
		return false
	}

	return true
}
