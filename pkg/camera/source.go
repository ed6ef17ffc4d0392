package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrWebcamUnavailable is returned by NewWebcam in builds without gocv.
	ErrWebcamUnavailable = errors.New("camera: webcam support not compiled in (build with -tags gocv)")

	// ErrEmptyCapture is returned when a source produced no bytes.
	ErrEmptyCapture = errors.New("camera: empty capture")

	// ErrClosed is returned by Capture after Close.
	ErrClosed = errors.New("camera: source closed")
)

// Source yields one encoded still image per Capture.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// StdinPath selects standard input in NewFileSource.
const StdinPath = "-"

// FileSource reads a photo from a file, or from stdin when Path is "-".
type FileSource struct {
	Path string

	stdin  io.Reader
	cached []byte
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, stdin: os.Stdin}
}

// Capture reads the file. Stdin is drained on the first call and the same
// bytes are returned afterwards.
func (f *FileSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.Path == StdinPath {
		if f.cached == nil {
			data, err := io.ReadAll(f.stdin)
			if err != nil {
				return nil, fmt.Errorf("camera: read stdin: %w", err)
			}
			f.cached = data
		}
		if len(f.cached) == 0 {
			return nil, ErrEmptyCapture
		}
		return f.cached, nil
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("camera: read %s: %w", f.Path, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyCapture
	}
	return data, nil
}

// Close is a no-op.
func (f *FileSource) Close() error {
	return nil
}

var _ Source = (*FileSource)(nil)
