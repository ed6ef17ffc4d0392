package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/vision-assistant/pkg/wav"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		path, mime, want string
	}{
		{"", "audio/wav", "description.wav"},
		{"", "audio/mpeg", "description.mp3"},
		{"out", "audio/wav", "out.wav"},
		{"out", "audio/mpeg", "out.mp3"},
		{"speech.wav", "audio/wav", "speech.wav"},
		{"speech.WAV", "audio/wav", "speech.WAV"},
		{"speech.wav", "audio/mpeg", "speech.mp3"},
		{"dir/speech.mp3", "audio/wav", "dir/speech.wav"},
		{"speech.audio", "audio/mpeg", "speech.audio"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputPath(tt.path, tt.mime), "path=%q mime=%q", tt.path, tt.mime)
	}
}

// writeMockConfig writes a config that uses the in-process mock providers.
func writeMockConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "vision.yaml")
	cfg := "caption:\n  providers: [mock]\nspeech:\n  providers: [mock]\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func writePhoto(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	img.Set(1, 1, color.Black)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestDescribeCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeMockConfig(t, dir)
	photo := writePhoto(t, dir)
	out := filepath.Join(dir, "spoken.mp3")

	stdout, err := runCLI(t, "describe", photo,
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "none.env"),
		"-o", out,
	)
	require.NoError(t, err)
	assert.Equal(t, "A placeholder photo used for testing.\n", stdout)

	// The mock voice answers with a float waveform, so the file is written as WAV.
	written := filepath.Join(dir, "spoken.wav")
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	decoded, err := wav.Decode(data)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.Samples)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestDescribeCommandJSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeMockConfig(t, dir)
	photo := writePhoto(t, dir)
	out := filepath.Join(dir, "result")

	stdout, err := runCLI(t, "describe", photo,
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "none.env"),
		"-o", out,
		"--json",
	)
	require.NoError(t, err)

	var res struct {
		ID        string `json:"id"`
		Caption   string `json:"caption"`
		MIMEType  string `json:"mime_type"`
		AudioPath string `json:"audio_path"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "A placeholder photo used for testing.", res.Caption)
	assert.Equal(t, wav.MIMEType, res.MIMEType)
	assert.Equal(t, out+".wav", res.AudioPath)
	assert.FileExists(t, res.AudioPath)
}

func TestDescribeCommandRejectsBadPhoto(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeMockConfig(t, dir)
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("not a photo"), 0o644))

	_, err := runCLI(t, "describe", bad,
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "none.env"),
		"-o", filepath.Join(dir, "out"),
	)
	assert.Error(t, err)
}
