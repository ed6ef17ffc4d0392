// Package wav converts floating-point speech waveforms into 16-bit PCM WAV files.
//
// Text-to-speech models emit mono float samples in [-1, 1] together with a sample
// rate. Browsers want a RIFF/WAVE container. Encode bridges the two:
//
//	data, err := wav.Encode(samples, 16000)
//	uri := wav.DataURI(data, wav.MIMEType) // <audio autoplay src="...">
//
// Samples are clamped to [-1, 1] and scaled by 32767 with round-half-away-from-zero,
// so 1.0 maps to 32767 and -1.0 to -32767. Out-of-range input never wraps.
package wav

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Fixed output format.
const (
	// BitDepth of every encoded file.
	BitDepth = 16

	// NumChannels of every encoded file (mono).
	NumChannels = 1

	// HeaderSize is the size of the canonical RIFF/fmt/data header in bytes.
	HeaderSize = 44

	// Scale maps a full-scale float sample to PCM16.
	Scale = 32767

	// MIMEType is the content type browsers accept for WAV.
	MIMEType = "audio/wav"

	// formatPCM is the WAVE format tag for integer PCM.
	formatPCM = 1
)

// Sentinel errors.
var (
	// ErrInvalidSampleRate is returned when the sample rate is not positive.
	ErrInvalidSampleRate = errors.New("wav: sample rate must be positive")

	// ErrInvalidWAV is returned when Decode cannot read a PCM WAV file.
	ErrInvalidWAV = errors.New("wav: invalid or unsupported WAV data")

	// ErrOddPCM is returned when raw PCM16 input has an odd number of bytes.
	ErrOddPCM = errors.New("wav: PCM16 data has odd length")
)

// Waveform is a mono floating-point signal.
type Waveform struct {
	// Samples are nominally in [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz (16000 for MMS models).
	SampleRate int
}

// Validate checks the waveform can be encoded.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, w.SampleRate)
	}
	return nil
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Quantize maps a float sample to PCM16: clamp to [-1, 1], scale by 32767, round
// half away from zero. NaN maps to 0.
func Quantize(s float32) int16 {
	f := float64(s)
	switch {
	case math.IsNaN(f):
		return 0
	case f > 1:
		f = 1
	case f < -1:
		f = -1
	}
	return int16(math.Round(f * Scale))
}

// Dequantize maps a PCM16 value back to a float sample, the inverse of Quantize
// for every value except -32768, which clamps to -1.
func Dequantize(v int16) float32 {
	f := float32(v) / Scale
	if f < -1 {
		return -1
	}
	return f
}
