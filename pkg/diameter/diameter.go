// Package diameter converts a pupil pixel area measured on the model grid
// into a diameter in the ROI's native pixel scale.
package diameter

import "math"

// Estimate returns roiSize * sqrt(area) / res.
//
// The pupil is assumed circular, so diameter scales with the square root of
// area. res is the side of the model's input grid; multiplying by
// roiSize/res maps grid pixels back to frame pixels. Non-positive areas
// (no detection) give 0.
func Estimate(area int, roiSize, res int) float64 {
	if area <= 0 || res <= 0 {
		return 0
	}
	return float64(roiSize) * math.Sqrt(float64(area)) / float64(res)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
