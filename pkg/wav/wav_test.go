package wav_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/vision-assistant/pkg/wav"
)

// decodeInts reads a file back with the go-audio decoder and returns raw PCM values.
func decodeInts(t *testing.T, data []byte) (*gowav.Decoder, []int) {
	t.Helper()
	d := gowav.NewDecoder(bytes.NewReader(data))
	require.True(t, d.IsValidFile(), "decoder rejected file")
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	return d, buf.Data
}

func TestEncodeScenario(t *testing.T) {
	data, err := wav.Encode([]float32{0.0, 0.5, -0.5, 1.0, -1.0}, 16000)
	require.NoError(t, err)

	d, got := decodeInts(t, data)
	assert.Equal(t, []int{0, 16384, -16384, 32767, -32767}, got)
	assert.EqualValues(t, 16000, d.SampleRate)
	assert.EqualValues(t, 1, d.NumChans)
	assert.EqualValues(t, 16, d.BitDepth)
}

func TestEncodeGoldenSingleSample(t *testing.T) {
	const golden = "52494646" + "26000000" + "57415645" + // RIFF, size 38, WAVE
		"666d7420" + "10000000" + "0100" + "0100" + // fmt, 16, PCM, mono
		"803e0000" + "007d0000" + "0200" + "1000" + // 16000 Hz, 32000 B/s, align 2, 16 bit
		"64617461" + "02000000" + "ff7f" // data, 2 bytes, 32767

	data, err := wav.Encode([]float32{1.0}, 16000)
	require.NoError(t, err)
	assert.Equal(t, golden, hex.EncodeToString(data))
}

func TestEncodeEmpty(t *testing.T) {
	for _, rate := range []int{1, 8000, 16000, 22050, 44100, 192000} {
		data, err := wav.Encode(nil, rate)
		require.NoError(t, err)
		require.Len(t, data, wav.HeaderSize)

		assert.Equal(t, "RIFF", string(data[0:4]))
		assert.EqualValues(t, 36, binary.LittleEndian.Uint32(data[4:8]))
		assert.Equal(t, "WAVE", string(data[8:12]))
		assert.EqualValues(t, rate, binary.LittleEndian.Uint32(data[24:28]))
		assert.Equal(t, "data", string(data[36:40]))
		assert.EqualValues(t, 0, binary.LittleEndian.Uint32(data[40:44]))

		info, err := wav.ReadInfo(data)
		require.NoError(t, err)
		assert.Equal(t, rate, info.SampleRate)
		assert.Equal(t, 1, info.NumChannels)
		assert.Equal(t, 16, info.BitDepth)

		w, err := wav.Decode(data)
		require.NoError(t, err)
		assert.Empty(t, w.Samples)
		assert.Equal(t, rate, w.SampleRate)
	}
}

func TestEncodeInvalidSampleRate(t *testing.T) {
	for _, rate := range []int{0, -1, -16000} {
		_, err := wav.Encode([]float32{0.1}, rate)
		assert.ErrorIs(t, err, wav.ErrInvalidSampleRate)
	}
}

func TestEncodeRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, rate := range []int{8000, 16000, 24000, 48000} {
		samples := make([]float32, 1+rng.IntN(4000))
		for i := range samples {
			samples[i] = float32(rng.Float64()*2 - 1)
		}

		data, err := wav.Encode(samples, rate)
		require.NoError(t, err)
		assert.Len(t, data, wav.HeaderSize+2*len(samples))

		d, got := decodeInts(t, data)
		require.Len(t, got, len(samples))
		assert.EqualValues(t, rate, d.SampleRate)
		assert.EqualValues(t, 1, d.NumChans)
		assert.EqualValues(t, 16, d.BitDepth)

		for i, s := range samples {
			want := math.Round(float64(s) * 32767)
			if diff := math.Abs(float64(got[i]) - want); diff > 1 {
				t.Fatalf("rate %d sample %d: got %d, want %.0f", rate, i, got[i], want)
			}
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	nan := float32(math.NaN())
	data, err := wav.Encode([]float32{1.5, -2, 40, nan, float32(math.Inf(-1))}, 16000)
	require.NoError(t, err)

	_, got := decodeInts(t, data)
	assert.Equal(t, []int{32767, -32767, 32767, 0, -32767}, got)
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16384},
		{-0.5, -16384},
		{1, 32767},
		{-1, -32767},
		{1.0001, 32767},
		{-1.0001, -32767},
		{1.0 / 32767, 1},
		{0.4 / 32767, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wav.Quantize(tt.in), "Quantize(%v)", tt.in)
	}
}

func TestDequantizeInverse(t *testing.T) {
	for _, v := range []int16{-32767, -16384, -1, 0, 1, 12345, 32767} {
		assert.Equal(t, v, wav.Quantize(wav.Dequantize(v)))
	}
	assert.Equal(t, float32(-1), wav.Dequantize(math.MinInt16))
}

func TestDecodeRoundTrip(t *testing.T) {
	in := wav.Waveform{Samples: []float32{0, 0.25, -0.75, 1}, SampleRate: 22050}
	data, err := wav.EncodeWaveform(in)
	require.NoError(t, err)

	out, err := wav.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 22050, out.SampleRate)
	require.Len(t, out.Samples, 4)
	for i := range in.Samples {
		assert.Equal(t, wav.Quantize(in.Samples[i]), wav.Quantize(out.Samples[i]))
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := wav.Decode([]byte("definitely not a wav file"))
	assert.ErrorIs(t, err, wav.ErrInvalidWAV)

	_, err = wav.Decode(nil)
	assert.ErrorIs(t, err, wav.ErrInvalidWAV)
}

func TestFromPCM16(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80}
	w, err := wav.FromPCM16(pcm, 24000)
	require.NoError(t, err)
	assert.Equal(t, 24000, w.SampleRate)
	assert.Equal(t, []float32{0, 1, -1}, w.Samples)

	_, err = wav.FromPCM16([]byte{0x01}, 24000)
	assert.ErrorIs(t, err, wav.ErrOddPCM)

	_, err = wav.FromPCM16(pcm, 0)
	assert.ErrorIs(t, err, wav.ErrInvalidSampleRate)
}

func TestWaveformDuration(t *testing.T) {
	w := wav.Waveform{Samples: make([]float32, 8000), SampleRate: 16000}
	assert.Equal(t, 500*time.Millisecond, w.Duration())
	assert.Zero(t, wav.Waveform{Samples: make([]float32, 10)}.Duration())
	assert.ErrorIs(t, wav.Waveform{}.Validate(), wav.ErrInvalidSampleRate)
}

func TestDataURI(t *testing.T) {
	data, err := wav.Encode([]float32{0.1, -0.1}, 16000)
	require.NoError(t, err)

	uri := wav.DataURI(data, "")
	require.True(t, strings.HasPrefix(uri, "data:audio/wav;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:audio/wav;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	assert.True(t, strings.HasPrefix(wav.DataURI([]byte{1}, "audio/mpeg"), "data:audio/mpeg;base64,"))
	assert.Equal(t, "AQI=", wav.EncodeBase64([]byte{1, 2}))
}
