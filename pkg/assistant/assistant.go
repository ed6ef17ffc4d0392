// Package assistant runs the describe pipeline: a photo goes in, a spoken
// description comes out.
//
// Stages run in order on the caller's goroutine:
//
//	prepare -> caption -> synthesize -> encode -> store
//
// There are no retries at this layer; providers retry transient HTTP failures
// themselves. Any stage error aborts the request and is returned wrapped in a
// StageError.
package assistant

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a pipeline step.
type Stage string

const (
	StagePrepare    Stage = "prepare"
	StageCaption    Stage = "caption"
	StageSynthesize Stage = "synthesize"
	StageEncode     Stage = "encode"
)

// ErrNotFound is returned by Replay for unknown or evicted result IDs.
var ErrNotFound = errors.New("assistant: result not found")

// StageError reports which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("assistant: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is a finished description, ready to play.
type Result struct {
	ID string `json:"id"`

	// Caption is the normalized description that was spoken.
	Caption string `json:"caption"`

	// RawCaption is the model output before normalization.
	RawCaption      string `json:"raw_caption,omitempty"`
	CaptionProvider string `json:"caption_provider,omitempty"`
	CaptionModel    string `json:"caption_model,omitempty"`

	// Audio is a WAV file, or MP3 when the voice returns compressed audio.
	Audio      []byte        `json:"-"`
	MIMEType   string        `json:"mime_type"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`

	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	Timings   Timings   `json:"timings"`
	CreatedAt time.Time `json:"created_at"`
}

// Timings records how long each stage took.
type Timings struct {
	Prepare    time.Duration `json:"prepare"`
	Caption    time.Duration `json:"caption"`
	Synthesize time.Duration `json:"synthesize"`
	Encode     time.Duration `json:"encode"`
	Total      time.Duration `json:"total"`
}
