//go:build !gocv

package camera

import "context"

// Webcam is unavailable without the gocv build tag.
type Webcam struct{}

// NewWebcam always fails in this build.
func NewWebcam(cfg Config) (*Webcam, error) {
	if err := cfg.Err(); err != nil {
		return nil, err
	}
	return nil, ErrWebcamUnavailable
}

// Capture always fails in this build.
func (w *Webcam) Capture(ctx context.Context) ([]byte, error) {
	return nil, ErrWebcamUnavailable
}

// Close is a no-op.
func (w *Webcam) Close() error {
	return nil
}

var _ Source = (*Webcam)(nil)
