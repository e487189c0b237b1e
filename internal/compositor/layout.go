package compositor

import (
	"image"
	"math"
)

// Placement returns where an instance's picture goes in a screenW x screenH
// window, and whether it is visible at all. aspect is the picture's display
// aspect ratio. In split layout the secondary instance takes the top half
// and the primary the bottom half; in single layout only the instance that
// owns the audio route is drawn, over the full height.
func Placement(layout Layout, small, active bool, screenW, screenH int, aspect float64) (image.Rectangle, bool) {
	if layout == LayoutSingle && !active {
		return image.Rectangle{}, false
	}
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = float64(screenW) / float64(screenH)
	}

	h := screenH
	w := int(math.RoundToEven(float64(h)*aspect)) & -3
	if w > screenW {
		w = screenW
		h = int(math.RoundToEven(float64(w)/aspect)) & -3
	}
	x := (screenW - w) / 2

	var y int
	switch {
	case layout == LayoutSingle:
		y, h = 0, screenH
	case small:
		y, h = 0, screenH/2
	default:
		y, h = screenH/2, screenH/2
	}
	return image.Rect(x, y, x+w, y+h), true
}

// aspectOf derives the display aspect ratio from picture dimensions.
func aspectOf(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return float64(w) / float64(h)
}
