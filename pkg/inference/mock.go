package inference

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-pupil/pkg/mask"
)

// Mock implements Model for testing.
type Mock struct {
	// RunFunc is called when Run is invoked.
	RunFunc func(ctx context.Context, tile *mask.Grid) ([]Tensor, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu       sync.Mutex
	calls    []MockCall
	inFlight int
	maxLive  int
	closed   bool
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock model that returns an all-zero pupil map of
// size res x res and an open, non-blinking eye.
func NewMock(res int) *Mock {
	return &Mock{
		RunFunc: func(ctx context.Context, tile *mask.Grid) ([]Tensor, error) {
			return MapOutputs(mask.NewGrid(res, res), 0.99, 0.01, false), nil
		},
	}
}

// MapOutputs builds the raw outputs a model would return for the given
// pupil map and eye/blink probabilities. swapped puts the pair first.
func MapOutputs(pupil *mask.Grid, eye, blink float64, swapped bool) []Tensor {
	data := make([]float32, len(pupil.Data))
	copy(data, pupil.Data)
	m := Tensor{Shape: []int{1, pupil.H, pupil.W, 1}, Data: data}
	p := Tensor{Shape: []int{1, 2}, Data: []float32{float32(eye), float32(blink)}}
	if swapped {
		return []Tensor{p, m}
	}
	return []Tensor{m, p}
}

// Run calls RunFunc and records the call.
func (m *Mock) Run(ctx context.Context, tile *mask.Grid) ([]Tensor, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Run", Time: time.Now()})
	m.inFlight++
	if m.inFlight > m.maxLive {
		m.maxLive = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, tile)
	}
	return nil, ErrNotReady
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Close", Time: time.Now()})
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// CallCount returns the number of calls to a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the highest number of Run calls observed running
// at the same time.
func (m *Mock) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLive
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.maxLive = 0
}
