// Package imaging normalizes captured photos before captioning.
//
// Camera captures arrive in whatever format the browser or device produced.
// Prepare decodes them, downscales anything larger than the captioner needs and
// re-encodes to JPEG so every provider receives the same kind of payload.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MIMEJPEG is the content type of prepared images.
const MIMEJPEG = "image/jpeg"

// DefaultMaxPixels bounds the decoded size of an image: 40 megapixels, about
// 160 MB as RGBA.
const DefaultMaxPixels = 40_000_000

var (
	// ErrUnsupportedImage is returned for empty or undecodable input.
	ErrUnsupportedImage = errors.New("imaging: unsupported or corrupt image")

	// ErrImageTooLarge is returned when the header declares more pixels than
	// allowed. It is reported before any pixel data is decoded.
	ErrImageTooLarge = errors.New("imaging: image dimensions too large")
)

// Options controls Prepare.
type Options struct {
	// MaxDimension bounds the longer side in pixels. Zero disables scaling.
	MaxDimension int

	// Quality is the JPEG quality, 1-100.
	Quality int

	// MaxPixels bounds width*height of the input. Zero uses DefaultMaxPixels.
	MaxPixels int
}

// DefaultOptions returns options suited to BLIP-style captioners.
func DefaultOptions() Options {
	return Options{
		MaxDimension: 1024,
		Quality:      85,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Prepared is a normalized image ready for a captioning request.
type Prepared struct {
	Data     []byte
	MIMEType string

	// SourceFormat is the decoder name of the input (jpeg, png, webp...).
	SourceFormat string

	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Resized        bool
}

// Decode reads any supported image format of at most DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return decode(data, DefaultMaxPixels)
}

// decode checks the declared dimensions against maxPixels before decoding,
// so a small file cannot claim a huge canvas.
func decode(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrUnsupportedImage)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// Prepare decodes data, scales it to fit opts.MaxDimension and encodes JPEG.
// A JPEG that already fits is returned unchanged.
func Prepare(data []byte, opts Options) (*Prepared, error) {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultOptions().Quality
	}

	img, format, err := decode(data, opts.MaxPixels)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	result := &Prepared{
		MIMEType:       MIMEJPEG,
		SourceFormat:   format,
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	w, h := fit(bounds.Dx(), bounds.Dy(), opts.MaxDimension)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = resize(img, w, h)
		result.Resized = true
	}
	result.Width, result.Height = w, h

	if format == "jpeg" && !result.Resized {
		result.Data = data
		return result, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	result.Data = buf.Bytes()
	return result, nil
}

// fit returns dimensions no larger than max on either side, keeping aspect ratio.
func fit(width, height, max int) (int, int) {
	if max <= 0 || (width <= max && height <= max) {
		return width, height
	}
	if width >= height {
		h := height * max / width
		if h < 1 {
			h = 1
		}
		return max, h
	}
	w := width * max / height
	if w < 1 {
		w = 1
	}
	return w, max
}

// resize scales img to exactly w x h with Catmull-Rom interpolation.
func resize(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// flatten composites transparent pixels onto white, since JPEG has no alpha.
func flatten(img image.Image) image.Image {
	if _, ok := img.(*image.YCbCr); ok {
		return img
	}
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
