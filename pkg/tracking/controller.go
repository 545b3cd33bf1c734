package tracking

import (
	"sync"

	"github.com/teslashibe/go-pupil/pkg/mask"
)

// Controller recentres the ROI on each detected pupil centroid
type Controller struct {
	mu        sync.RWMutex
	res       float64
	smoothing float64
}

// NewController creates a controller from config
func NewController(config Config) *Controller {
	return &Controller{
		res:       float64(config.ModelResolution),
		smoothing: config.Smoothing,
	}
}

// Smoothing returns the current exponential smoothing factor
func (c *Controller) Smoothing() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.smoothing
}

// SetSmoothing changes the smoothing factor at runtime, clamped to [0, 1].
func (c *Controller) SetSmoothing(s float64) {
	c.mu.Lock()
	c.smoothing = clamp(s, 0, 1)
	c.mu.Unlock()
}

// Target converts a centroid on the model grid into the top-left corner an
// ROI centred on it would have, in frame coordinates.
func (c *Controller) Target(roi ROI, centroid mask.Point) (x, y float64) {
	scale := float64(roi.Size) / c.res
	half := float64(roi.Size) / 2
	return roi.X + centroid.X*scale - half, roi.Y + centroid.Y*scale - half
}

// Update returns the next ROI given a detected centroid (model grid
// coordinates) and the blink probability of the same pass.
//
// The raw target is blended with the previous position weighted by blink
// probability, exponentially smoothed, then clamped to the frame. At
// blink = 1 the ROI does not move.
func (c *Controller) Update(roi ROI, centroid mask.Point, blink float64, frameW, frameH int) ROI {
	blink = clamp(blink, 0, 1)
	s := c.Smoothing()

	rawX, rawY := c.Target(roi, centroid)

	// (1-b)*raw + b*prev and s*blended + (1-s)*prev, written as offsets from
	// prev so that b = 1 leaves the position bit-for-bit unchanged.
	dx := (1 - blink) * (rawX - roi.X)
	dy := (1 - blink) * (rawY - roi.Y)

	next := roi
	next.X = roi.X + s*dx
	next.Y = roi.Y + s*dy
	return next.Clamp(frameW, frameH)
}
