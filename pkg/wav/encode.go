package wav

import (
	"encoding/base64"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Encode converts a mono float waveform into a 16-bit PCM WAV file.
// An empty waveform yields a valid header with zero data frames.
func Encode(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(Quantize(s))
	}

	out := newWriteSeeker(HeaderSize + len(samples)*BitDepth/8)
	enc := wav.NewEncoder(out, sampleRate, BitDepth, NumChannels, formatPCM)

	// Write is called even for empty input so the data chunk header is emitted.
	err := enc.Write(&audio.IntBuffer{
		Data: data,
		Format: &audio.Format{
			NumChannels: NumChannels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: BitDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("wav: write samples: %w", err)
	}

	// Close rewrites the RIFF and data chunk sizes.
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav: finalize header: %w", err)
	}

	return out.Bytes(), nil
}

// EncodeWaveform encodes w. See Encode.
func EncodeWaveform(w Waveform) ([]byte, error) {
	return Encode(w.Samples, w.SampleRate)
}

// EncodeBase64 returns the standard base64 encoding of an encoded file.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURI embeds encoded audio in a data URI suitable for <audio src>.
// An empty mime defaults to audio/wav.
func DataURI(data []byte, mime string) string {
	if mime == "" {
		mime = MIMEType
	}
	return "data:" + mime + ";base64," + EncodeBase64(data)
}
