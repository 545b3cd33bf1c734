package tracking

import (
	"fmt"
	"image"
	"math"
)

// ROI is the square window cropped from each frame and fed to the model.
type ROI struct {
	X         float64 `json:"x"`         // Left edge in frame pixels
	Y         float64 `json:"y"`         // Top edge in frame pixels
	Size      int     `json:"size"`      // Side length in frame pixels
	Threshold float64 `json:"threshold"` // Binarization threshold for the pupil map
}

// Rect returns the crop rectangle, rounding the position to whole pixels.
func (r ROI) Rect() image.Rectangle {
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))
	return image.Rect(x, y, x+r.Size, y+r.Size)
}

// Clamp returns r moved so the window stays inside a frameW x frameH frame.
// A window larger than the frame is pinned to the top-left corner.
func (r ROI) Clamp(frameW, frameH int) ROI {
	r.X = clamp(r.X, 0, math.Max(0, float64(frameW-r.Size)))
	r.Y = clamp(r.Y, 0, math.Max(0, float64(frameH-r.Size)))
	return r
}

func (r ROI) String() string {
	return fmt.Sprintf("roi(%.1f,%.1f,%d,t=%.2f)", r.X, r.Y, r.Size, r.Threshold)
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
