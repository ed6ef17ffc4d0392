//go:build gocv

package camera

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/vision-assistant/internal/log"
)

// Webcam captures JPEG stills from a local video device through OpenCV.
type Webcam struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	device *gocv.VideoCapture
	closed bool
}

// NewWebcam opens the device named by cfg.DeviceID.
func NewWebcam(cfg Config) (*Webcam, error) {
	if err := cfg.Err(); err != nil {
		return nil, err
	}

	device, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.DeviceID, err)
	}
	if !device.IsOpened() {
		device.Close()
		return nil, fmt.Errorf("camera: device %d not opened", cfg.DeviceID)
	}

	if cfg.Width > 0 {
		device.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		device.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	logger := log.Component("camera.webcam")
	logger.Info("webcam opened",
		"device", cfg.DeviceID,
		"width", device.Get(gocv.VideoCaptureFrameWidth),
		"height", device.Get(gocv.VideoCaptureFrameHeight),
	)

	return &Webcam{cfg: cfg, logger: logger, device: device}, nil
}

// Capture discards the warmup frames, then grabs and JPEG-encodes one frame.
func (w *Webcam) Capture(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i <= w.cfg.WarmupFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := w.device.Read(&frame); !ok {
			return nil, fmt.Errorf("camera: read frame from device %d", w.cfg.DeviceID)
		}
	}
	if frame.Empty() {
		return nil, ErrEmptyCapture
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), w.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	defer buf.Close()

	data := bytes.Clone(buf.GetBytes())
	w.logger.Debug("frame captured", "bytes", len(data), "cols", frame.Cols(), "rows", frame.Rows())
	return data, nil
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.device.Close()
}

var _ Source = (*Webcam)(nil)
