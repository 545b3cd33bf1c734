package camera

import (
	"fmt"
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Still is a frame source that always serves the same image.
type Still struct {
	img    image.Image
	paused atomic.Bool
}

// NewStill wraps img.
func NewStill(img image.Image) *Still {
	return &Still{img: img}
}

// LoadStill reads an image file in any format OpenCV can decode.
func LoadStill(path string) (*Still, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("camera: cannot read image %s", path)
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera: convert %s: %w", path, err)
	}
	return NewStill(img), nil
}

// Frame returns the image.
func (s *Still) Frame() (image.Image, error) {
	return s.img, nil
}

// Size returns the image size.
func (s *Still) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Paused reports whether Pause was called.
func (s *Still) Paused() bool {
	return s.paused.Load()
}

// Pause marks the source paused.
func (s *Still) Pause() { s.paused.Store(true) }

// Resume clears the paused mark.
func (s *Still) Resume() { s.paused.Store(false) }
