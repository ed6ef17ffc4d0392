// Package tts provides a unified interface for text-to-speech providers.
//
// The package supports self-hosted MMS/VITS endpoints, OpenAI, ElevenLabs,
// Google Cloud Text-to-Speech and the Google Translate voice. All providers
// implement the Provider interface, enabling seamless switching without
// changing caller code.
//
// Example usage:
//
//	provider, _ := tts.NewMMS(tts.WithBaseURL("http://localhost:8008/synthesize"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "A dog sitting on a couch.")
//	w, _ := result.Waveform()
//	data, _ := wav.EncodeWaveform(*w)
package tts

import (
	"context"
	"time"

	"github.com/teslashibe/vision-assistant/pkg/wav"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
// Float providers fill Samples; byte providers fill Audio.
type AudioResult struct {
	// Audio contains encoded audio bytes (PCM16, WAV or MP3).
	Audio []byte

	// Samples contains a float waveform when Format.Encoding is EncodingFloat32.
	Samples []float32

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the audio playback duration, estimated for compressed audio.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies how the result carries audio.
	Encoding Encoding

	// SampleRate in Hz (e.g., 16000, 24000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingFloat32 is a float waveform in AudioResult.Samples.
	EncodingFloat32 Encoding = "float32"

	// EncodingPCM16 is headerless little-endian signed 16-bit PCM.
	EncodingPCM16 Encoding = "pcm_s16le"

	// EncodingWAV is a complete RIFF/WAVE file.
	EncodingWAV Encoding = "wav"

	// EncodingMP3 is MPEG layer III, played as-is by browsers.
	EncodingMP3 Encoding = "mp3"
)

// MIMEType returns the content type used to serve audio in this encoding.
// Everything except MP3 is served as WAV after encoding.
func (e Encoding) MIMEType() string {
	if e == EncodingMP3 {
		return "audio/mpeg"
	}
	return wav.MIMEType
}

// IsCompressed reports whether the encoding cannot be turned into a waveform.
func (e Encoding) IsCompressed() bool {
	return e == EncodingMP3
}

// Waveform converts a PCM-like result into a float waveform.
// Compressed results return ErrCompressed and should be played as-is.
func (r *AudioResult) Waveform() (*wav.Waveform, error) {
	switch r.Format.Encoding {
	case EncodingFloat32:
		samples := make([]float32, len(r.Samples))
		copy(samples, r.Samples)
		w := &wav.Waveform{Samples: samples, SampleRate: r.Format.SampleRate}
		if err := w.Validate(); err != nil {
			return nil, err
		}
		return w, nil
	case EncodingPCM16:
		return wav.FromPCM16(r.Audio, r.Format.SampleRate)
	case EncodingWAV:
		return wav.Decode(r.Audio)
	case EncodingMP3:
		return nil, ErrCompressed
	default:
		return nil, ErrUnsupportedEncoding
	}
}

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool

	// Speed scales the speaking rate. Zero means provider default.
	Speed float64
}

// DefaultVoiceSettings returns calm, clear settings suited to narration.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.6,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// pcmDuration computes the playback time of mono PCM16 bytes.
func pcmDuration(byteCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	frames := byteCount / 2
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// mp3Duration estimates playback time of a constant bitrate MP3.
func mp3Duration(byteCount, kbps int) time.Duration {
	if kbps <= 0 {
		return 0
	}
	return time.Duration(byteCount*8) * time.Second / time.Duration(kbps*1000)
}
