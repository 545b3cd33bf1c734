package camera

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by Frame before the first frame has been read.
var ErrNoFrame = errors.New("camera: no frame yet")

// Capture reads frames from a device or video file in the background and
// serves the most recent one.
type Capture struct {
	cfg    Config
	vc     *gocv.VideoCapture
	logger *slog.Logger
	period time.Duration // Pacing for files; 0 for devices

	mu     sync.RWMutex // Protects latest, width, height
	latest image.Image
	width  int
	height int

	paused  atomic.Bool
	frames  atomic.Int64
	readErr atomic.Int64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Open starts capturing. It validates cfg, opens the source and blocks
// until the first frame has been read.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var vc *gocv.VideoCapture
	var err error
	if cfg.File != "" {
		vc, err = gocv.VideoCaptureFile(cfg.File)
	} else {
		vc, err = gocv.VideoCaptureDevice(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Source(), err)
	}

	c := &Capture{
		cfg:    cfg,
		vc:     vc,
		logger: logger.With("source", cfg.Source()),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.File != "" {
		fps := cfg.FPS
		if fps == 0 {
			fps = vc.Get(gocv.VideoCaptureFPS)
		}
		if fps <= 0 {
			fps = 30
		}
		c.period = time.Duration(float64(time.Second) / fps)
	} else {
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
	}

	mat := gocv.NewMat()
	if ok := c.readInto(&mat); !ok {
		mat.Close()
		vc.Close()
		return nil, fmt.Errorf("camera: no frames from %s", cfg.Source())
	}

	go c.run(mat)

	w, h := c.Size()
	c.logger.Info("capture started", "width", w, "height", h, "period", c.period)
	return c, nil
}

// readInto reads one frame and publishes it. It reports false at the end of
// the stream or on a read error.
func (c *Capture) readInto(mat *gocv.Mat) bool {
	if ok := c.vc.Read(mat); !ok || mat.Empty() {
		return false
	}
	img, err := mat.ToImage()
	if err != nil {
		c.readErr.Add(1)
		c.logger.Warn("frame conversion failed", "error", err)
		return true
	}

	b := img.Bounds()
	c.mu.Lock()
	c.latest = img
	c.width, c.height = b.Dx(), b.Dy()
	c.mu.Unlock()
	c.frames.Add(1)
	return true
}

func (c *Capture) run(mat gocv.Mat) {
	defer close(c.done)
	defer mat.Close()

	var tick <-chan time.Time
	if c.period > 0 {
		t := time.NewTicker(c.period)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-c.stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-c.stop:
				return
			default:
			}
		}

		if c.paused.Load() {
			if tick == nil {
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}

		if c.readInto(&mat) {
			continue
		}

		if c.cfg.File != "" && c.cfg.Loop {
			c.vc.Set(gocv.VideoCapturePosFrames, 0)
			continue
		}

		// End of stream: hold the last frame.
		c.paused.Store(true)
		c.logger.Info("end of stream, pausing", "frames", c.frames.Load())
	}
}

// Frame returns the most recent frame.
func (c *Capture) Frame() (image.Image, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, ErrNoFrame
	}
	return c.latest, nil
}

// Size returns the native frame size.
func (c *Capture) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// Paused reports whether reading is paused, either by Pause or because a
// file reached its end.
func (c *Capture) Paused() bool {
	return c.paused.Load()
}

// Pause stops reading new frames; Frame keeps returning the last one.
func (c *Capture) Pause() {
	c.paused.Store(true)
}

// Resume continues reading.
func (c *Capture) Resume() {
	c.paused.Store(false)
}

// Frames returns how many frames have been read.
func (c *Capture) Frames() int64 {
	return c.frames.Load()
}

// Close stops the reader and releases the device.
func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		err = c.vc.Close()
	})
	return err
}
