// Package caption turns photos into short natural-language descriptions.
//
// Captioning is delegated to pretrained image-to-text models. Every backend
// (Hugging Face BLIP, OpenAI-compatible vision chat, Gemini) implements Provider,
// so callers can switch or chain them without changing code.
//
// Example usage:
//
//	p, _ := caption.NewHuggingFace(
//	    caption.WithAPIKey(os.Getenv("HF_TOKEN")),
//	)
//	defer p.Close()
//
//	res, _ := p.Caption(ctx, &caption.Request{Image: jpegBytes})
//	fmt.Println(res.Text) // "A dog sitting on a couch."
package caption

import (
	"context"
)

// Provider is the image-to-text interface.
type Provider interface {
	// Caption describes the image in req. Result.Text is already normalized.
	Caption(ctx context.Context, req *Request) (*Result, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is a single captioning call.
type Request struct {
	// Image is the encoded photo (JPEG or PNG).
	Image []byte

	// MIMEType of Image. Empty means image/jpeg.
	MIMEType string

	// MaxNewTokens limits the generated caption length. Zero uses the provider default.
	MaxNewTokens int

	// Prompt steers instruction-following models. Ignored by pure captioners.
	Prompt string
}

// Result is a generated caption.
type Result struct {
	// Text is the normalized caption: trimmed, capitalized, terminated.
	Text string

	// Raw is the model output before normalization.
	Raw string

	// Model that produced the caption.
	Model string

	// Provider name that produced the caption.
	Provider string

	// LatencyMs is the end-to-end request time in milliseconds.
	LatencyMs int64
}

// mimeType returns the request MIME type with the JPEG default applied.
func (r *Request) mimeType() string {
	if r.MIMEType == "" {
		return "image/jpeg"
	}
	return r.MIMEType
}

// validate checks the request carries an image.
func (r *Request) validate() error {
	if r == nil || len(r.Image) == 0 {
		return ErrNoImage
	}
	return nil
}

// newResult normalizes raw model output into a Result.
func newResult(provider, model, raw string, latencyMs int64) (*Result, error) {
	text := Normalize(raw)
	if text == "" {
		return nil, WrapError(provider, ErrEmptyCaption)
	}
	return &Result{
		Text:      text,
		Raw:       raw,
		Model:     model,
		Provider:  provider,
		LatencyMs: latencyMs,
	}, nil
}
