// Package camera captures still photos for the describe pipeline.
//
// A Source yields one encoded image per Capture call. FileSource reads a
// photo from disk or stdin; Webcam grabs a frame from a local video device
// when the binary is built with the gocv tag.
package camera

import (
	"fmt"
	"strings"
)

// Device limits accepted by Validate.
const (
	MaxWidth        = 4096
	MaxHeight       = 2160
	MaxWarmupFrames = 60
)

// Config holds webcam capture parameters.
type Config struct {
	DeviceID int `json:"device_id" mapstructure:"device_id"` // OpenCV device index
	Width    int `json:"width" mapstructure:"width"`         // Requested frame width, 0 keeps the driver default
	Height   int `json:"height" mapstructure:"height"`       // Requested frame height, 0 keeps the driver default

	// WarmupFrames are read and discarded before the captured frame so
	// auto exposure can settle.
	WarmupFrames int `json:"warmup_frames" mapstructure:"warmup_frames"`

	// Quality is the JPEG quality of captured frames, 1-100.
	Quality int `json:"quality" mapstructure:"quality"`
}

// DefaultConfig returns a 720p configuration for the first video device.
func DefaultConfig() Config {
	return Config{
		DeviceID:     0,
		Width:        1280,
		Height:       720,
		WarmupFrames: 5,
		Quality:      90,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.DeviceID < 0 {
		errs = append(errs, "device_id must be >= 0")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errs = append(errs, fmt.Sprintf("width must be 0 or between 160 and %d", MaxWidth))
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errs = append(errs, fmt.Sprintf("height must be 0 or between 120 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, "width and height must be set together")
	}
	if c.WarmupFrames < 0 || c.WarmupFrames > MaxWarmupFrames {
		errs = append(errs, fmt.Sprintf("warmup_frames must be between 0 and %d", MaxWarmupFrames))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}

	return errs
}

// Err returns Validate's findings as a single error.
func (c *Config) Err() error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
