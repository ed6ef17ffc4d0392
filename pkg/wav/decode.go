package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/wav"
)

// Info is the format header of a WAV file.
type Info struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Format      int
}

// ReadInfo parses only the format chunk of a WAV file.
func ReadInfo(data []byte) (Info, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if d.SampleRate == 0 || d.NumChans == 0 {
		return Info{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	return Info{
		SampleRate:  int(d.SampleRate),
		NumChannels: int(d.NumChans),
		BitDepth:    int(d.BitDepth),
		Format:      int(d.WavAudioFormat),
	}, nil
}

// Decode reads an integer PCM WAV file into a mono waveform.
// Multi-channel input is averaged down to one channel.
func Decode(data []byte) (*Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if d.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: format tag %d is not PCM", ErrInvalidWAV, d.WavAudioFormat)
	}
	if d.SampleRate == 0 || d.NumChans == 0 || d.BitDepth == 0 {
		return nil, fmt.Errorf("%w: incomplete fmt chunk", ErrInvalidWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read samples: %v", ErrInvalidWAV, err)
	}

	channels := int(d.NumChans)
	bitDepth := int(d.BitDepth)
	frames := len(buf.Data) / channels

	samples := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += toFloat(buf.Data[i*channels+c], bitDepth)
		}
		samples[i] = sum / float32(channels)
	}

	return &Waveform{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// FromPCM16 converts raw little-endian signed 16-bit mono PCM into a waveform.
func FromPCM16(pcm []byte, sampleRate int) (*Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCM
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = Dequantize(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return &Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

func toFloat(v, bitDepth int) float32 {
	switch bitDepth {
	case 16:
		return Dequantize(int16(v))
	case 8:
		// 8-bit WAV is unsigned; go-audio returns the raw byte value.
		return clamp(float32(v-128) / 127)
	default:
		full := float32(int64(1)<<(bitDepth-1) - 1)
		return clamp(float32(v) / full)
	}
}

func clamp(f float32) float32 {
	switch {
	case f > 1:
		return 1
	case f < -1:
		return -1
	}
	return f
}
