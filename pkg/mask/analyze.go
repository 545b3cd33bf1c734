package mask

// Point is a position in grid coordinates: X is the column, Y the row.
type Point struct {
	X, Y float64
}

// Centroid computes the image-moment centroid (m10/m00, m01/m00) of the
// foreground of b. ok is false when b has no foreground pixels, so an
// empty mask is never confused with a pupil sitting at (0,0).
func Centroid(b *Binary) (p Point, ok bool) {
	var m00, m10, m01 float64
	for y := 0; y < b.H; y++ {
		row := b.Data[y*b.W : (y+1)*b.W]
		for x, v := range row {
			if v == 0 {
				continue
			}
			m00++
			m10 += float64(x)
			m01 += float64(y)
		}
	}
	if m00 == 0 {
		return Point{}, false
	}
	return Point{X: m10 / m00, Y: m01 / m00}, true
}

// Result is the outcome of post-processing one probability map.
type Result struct {
	// Area is the pupil pixel count: largest component plus filled holes.
	Area int
	// Holes is how many of those pixels came from hole filling.
	Holes int
	// Centroid is only meaningful when Detected is true.
	Centroid Point
	// Detected is false when no cell reached the threshold.
	Detected bool
}

// Analyze runs the full post-processing chain on g with threshold t.
func Analyze(g *Grid, t float64) Result {
	largest, area := LargestComponent(Threshold(g, t))
	if area == 0 {
		return Result{}
	}

	filled, holes := FillHoles(largest)
	c, ok := Centroid(filled)
	if !ok {
		return Result{}
	}

	return Result{
		Area:     area + holes,
		Holes:    holes,
		Centroid: c,
		Detected: true,
	}
}
