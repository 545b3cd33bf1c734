// Package inference wraps the external pupil segmentation model.
//
// The model is opaque: it takes a normalized single-channel tile and returns
// two tensors, a per-pixel pupil probability map and an (eye, blink)
// probability pair. Model versions disagree on the order of the two
// outputs, so the Adapter resolves them by shape.
//
// Example usage:
//
//	adapter := inference.NewAdapter(inference.WithResolution(128))
//	model, err := onnx.Load(ctx, "models/pupil.onnx")
//	if err != nil {
//	    return err
//	}
//	adapter.Bind(model)
//
//	out, err := adapter.Infer(ctx, tile)
package inference

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-pupil/pkg/mask"
)

// Model is a loaded segmentation model.
type Model interface {
	// Run performs one forward pass on tile and returns the raw outputs.
	Run(ctx context.Context, tile *mask.Grid) ([]Tensor, error)

	// Close releases any resources held by the model.
	Close() error
}

// Loader binds a model reference (a path or URL) to a loaded Model.
type Loader func(ctx context.Context, ref string) (Model, error)

// Tensor is a raw model output.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Elements returns the number of values implied by Shape.
func (t Tensor) Elements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Output is a resolved model result.
type Output struct {
	// Pupil is the per-pixel pupil probability map.
	Pupil *mask.Grid

	// Eye is the probability that an eye is visible.
	Eye float64

	// Blink is the probability that the eye is closing or closed.
	Blink float64
}

// Resolve picks the pupil map and the eye/blink pair out of raw outputs,
// whatever order the model returned them in. The map is the tensor of rank
// two or more holding res*res values; the pair is the tensor holding
// exactly two.
func Resolve(outputs []Tensor, res int) (Output, error) {
	if len(outputs) != 2 {
		return Output{}, fmt.Errorf("%w: expected 2 outputs, got %d", ErrOutputShape, len(outputs))
	}

	mapIdx := -1
	for i, t := range outputs {
		if isMap(t, res) {
			mapIdx = i
			break
		}
	}
	if mapIdx < 0 {
		return Output{}, fmt.Errorf("%w: no %dx%d map in shapes %v, %v",
			ErrOutputShape, res, res, outputs[0].Shape, outputs[1].Shape)
	}

	pair := outputs[1-mapIdx]
	if pair.Elements() != 2 || len(pair.Data) != 2 {
		return Output{}, fmt.Errorf("%w: eye/blink tensor has shape %v", ErrOutputShape, pair.Shape)
	}

	pm := outputs[mapIdx]
	data := make([]float32, len(pm.Data))
	copy(data, pm.Data)
	grid, err := mask.GridFrom(res, res, data)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrOutputShape, err)
	}

	return Output{
		Pupil: grid,
		Eye:   float64(pair.Data[0]),
		Blink: float64(pair.Data[1]),
	}, nil
}

func isMap(t Tensor, res int) bool {
	return len(t.Shape) >= 2 && t.Elements() == res*res && len(t.Data) == res*res
}
