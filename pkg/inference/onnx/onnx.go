// Package onnx runs the pupil segmentation model through OpenCV's DNN module.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/teslashibe/go-pupil/internal/httpc"
	"github.com/teslashibe/go-pupil/pkg/inference"
	"github.com/teslashibe/go-pupil/pkg/mask"
	"gocv.io/x/gocv"
)

// Config holds model loading options.
type Config struct {
	Backend  gocv.NetBackendType
	Target   gocv.NetTargetType
	CacheDir string // Where remote models are downloaded to
}

// DefaultConfig returns CPU defaults.
func DefaultConfig() Config {
	return Config{
		Backend:  gocv.NetBackendDefault,
		Target:   gocv.NetTargetCPU,
		CacheDir: filepath.Join(os.TempDir(), "go-pupil", "models"),
	}
}

// Model is an ONNX network loaded into OpenCV.
type Model struct {
	net     gocv.Net
	outputs []string
	mu      sync.Mutex // Protects inference
}

// Load reads the model at ref with DefaultConfig. It matches
// inference.Loader.
func Load(ctx context.Context, ref string) (inference.Model, error) {
	return Loader(DefaultConfig())(ctx, ref)
}

// Loader returns an inference.Loader using cfg. Refs starting with
// http:// or https:// are downloaded to cfg.CacheDir first.
func Loader(cfg Config) inference.Loader {
	return func(ctx context.Context, ref string) (inference.Model, error) {
		path := ref
		if httpc.IsURL(ref) {
			p, err := httpc.Download(ctx, nil, ref, cfg.CacheDir)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return open(path, cfg)
	}
}

func open(path string, cfg Config) (*Model, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", path)
	}

	net.SetPreferableBackend(cfg.Backend)
	net.SetPreferableTarget(cfg.Target)

	var names []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	if len(names) != 2 {
		net.Close()
		return nil, fmt.Errorf("model %s has %d outputs, expected 2", path, len(names))
	}

	return &Model{net: net, outputs: names}, nil
}

// Run feeds tile to the network as a 1x1xRxR blob and returns both
// outputs in the order the network declares them.
func (m *Model) Run(ctx context.Context, tile *mask.Grid) ([]inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	img := gocv.NewMatWithSize(tile.H, tile.W, gocv.MatTypeCV32FC1)
	defer img.Close()
	for y := 0; y < tile.H; y++ {
		for x := 0; x < tile.W; x++ {
			img.SetFloatAt(y, x, tile.At(x, y))
		}
	}

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(tile.W, tile.H), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")

	blobs := m.net.ForwardLayers(m.outputs)
	defer func() {
		for _, b := range blobs {
			b.Close()
		}
	}()

	tensors := make([]inference.Tensor, 0, len(blobs))
	for i, b := range blobs {
		data, err := b.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("read output %s: %w", m.outputs[i], err)
		}
		out := make([]float32, len(data))
		copy(out, data)
		tensors = append(tensors, inference.Tensor{Shape: b.Size(), Data: out})
	}
	return tensors, nil
}

// Close releases the network.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
