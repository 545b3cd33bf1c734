// Package preprocess turns the ROI of a video frame into the model's input
// tile: a fixed-size, single-channel intensity grid with values in [0,1].
package preprocess

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/teslashibe/go-pupil/pkg/mask"
	"github.com/teslashibe/go-pupil/pkg/tracking"
)

// Weights are the per-channel luminance coefficients.
type Weights struct {
	R, G, B float64
}

// DefaultWeights are the ITU-R 601 luma coefficients.
var DefaultWeights = Weights{R: 0.2989, G: 0.587, B: 0.114}

// Preprocessor crops, resizes and normalizes ROI tiles. It keeps a scratch
// buffer between calls and must not be shared between goroutines.
type Preprocessor struct {
	res     int
	weights Weights
	scaler  xdraw.Interpolator
	scratch *image.RGBA
}

// New creates a Preprocessor producing res x res tiles.
func New(res int, w Weights) *Preprocessor {
	return &Preprocessor{
		res:     res,
		weights: w,
		scaler:  xdraw.BiLinear,
		scratch: image.NewRGBA(image.Rect(0, 0, res, res)),
	}
}

// Resolution returns the side length of produced tiles.
func (p *Preprocessor) Resolution() int {
	return p.res
}

// Tile crops roi out of frame, resizes it bilinearly to the model input
// resolution and collapses it to normalized intensity.
//
// The ROI is expected to lie inside the frame (the tracking controller
// clamps it); the crop is still intersected with the frame bounds so a bad
// ROI yields a partly black tile instead of a panic.
func (p *Preprocessor) Tile(frame image.Image, roi tracking.ROI) *mask.Grid {
	b := frame.Bounds()
	src := roi.Rect().Add(b.Min).Intersect(b)

	draw.Draw(p.scratch, p.scratch.Bounds(), image.Black, image.Point{}, draw.Src)
	if !src.Empty() {
		p.scaler.Scale(p.scratch, p.scratch.Bounds(), frame, src, xdraw.Src, nil)
	}

	return Intensity(p.scratch, p.weights)
}

// Intensity collapses img to a single channel with weights w, clips to the
// 8-bit range and rescales to [0,1].
func Intensity(img *image.RGBA, w Weights) *mask.Grid {
	r := img.Bounds()
	g := mask.NewGrid(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+r.Dx()*4]
		for x := 0; x < r.Dx(); x++ {
			px := row[x*4 : x*4+4]
			v := w.R*float64(px[0]) + w.G*float64(px[1]) + w.B*float64(px[2])
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			g.Data[y*g.W+x] = float32(v / 255)
		}
	}
	return g
}
