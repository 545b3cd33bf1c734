// Package mask turns a segmentation model's pupil probability map into a
// pupil area and centroid.
//
// The pipeline is: threshold -> keep the largest 4-connected component ->
// fill interior holes -> moment centroid. Every step works on copies, the
// probability grid handed in by the caller is never modified.
package mask

import "fmt"

// Grid is a row-major 2D array of probabilities in [0,1].
type Grid struct {
	W, H int
	Data []float32
}

// NewGrid allocates a zeroed w x h grid.
func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Data: make([]float32, w*h)}
}

// GridFrom wraps data as a w x h grid. data must hold exactly w*h values.
func GridFrom(w, h int, data []float32) (*Grid, error) {
	if w <= 0 || h <= 0 || len(data) != w*h {
		return nil, fmt.Errorf("mask: grid %dx%d does not match %d values", w, h, len(data))
	}
	return &Grid{W: w, H: h, Data: data}, nil
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float32 {
	return g.Data[y*g.W+x]
}

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float32) {
	g.Data[y*g.W+x] = v
}

// Binary is a 0/1 mask with the same layout as Grid.
type Binary struct {
	W, H int
	Data []uint8
}

// NewBinary allocates an all-background w x h mask.
func NewBinary(w, h int) *Binary {
	return &Binary{W: w, H: h, Data: make([]uint8, w*h)}
}

// At reports whether the cell at column x, row y is foreground.
func (b *Binary) At(x, y int) bool {
	return b.Data[y*b.W+x] != 0
}

// Set marks the cell at column x, row y as foreground or background.
func (b *Binary) Set(x, y int, on bool) {
	if on {
		b.Data[y*b.W+x] = 1
	} else {
		b.Data[y*b.W+x] = 0
	}
}

// Count returns the number of foreground cells.
func (b *Binary) Count() int {
	n := 0
	for _, v := range b.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (b *Binary) Clone() *Binary {
	out := &Binary{W: b.W, H: b.H, Data: make([]uint8, len(b.Data))}
	copy(out.Data, b.Data)
	return out
}

// Threshold binarizes g: a cell is foreground when its probability is >= t.
func Threshold(g *Grid, t float64) *Binary {
	b := NewBinary(g.W, g.H)
	thr := float32(t)
	for i, p := range g.Data {
		if p >= thr {
			b.Data[i] = 1
		}
	}
	return b
}
