package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"huggingface"}, cfg.Caption.Providers)
	assert.Equal(t, "Salesforce/blip-image-captioning-base", cfg.Caption.HuggingFace.Model)
	assert.Equal(t, 80, cfg.Caption.MaxNewTokens)
	assert.Equal(t, []string{"mms"}, cfg.Speech.Providers)
	assert.Equal(t, 16000, cfg.Speech.SampleRate)
	assert.Equal(t, "shimmer", cfg.Speech.OpenAI.Voice)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Speech.OpenAI.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, 32, cfg.Replay.Capacity)
	assert.Equal(t, "en", cfg.Speech.Translate.Language)
	assert.Equal(t, 90, cfg.Camera.Quality)
	assert.Equal(t, 40_000_000, cfg.Image.MaxPixels())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VISION_SERVER_ADDR", ":9090")
	t.Setenv("VISION_SPEECH_SAMPLE_RATE", "22050")
	t.Setenv("VISION_CAPTION_PROVIDERS", "OpenAI, gemini")
	t.Setenv("VISION_SPEECH_OPENAI_VOICE", "nova")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(Options{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 22050, cfg.Speech.SampleRate)
	assert.Equal(t, []string{"openai", "gemini"}, cfg.Caption.Providers)
	assert.Equal(t, "nova", cfg.Speech.OpenAI.Voice)
	assert.Equal(t, "sk-test", cfg.Caption.OpenAI.APIKey)
	assert.Equal(t, "sk-test", cfg.Speech.OpenAI.APIKey)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vision.yaml")
	content := `
server:
  addr: ":7070"
speech:
  providers: [openai, mms]
  openai:
    format: mp3
image:
  max_dimension: 512
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(Options{ConfigFile: path, EnvFiles: []string{filepath.Join(dir, "none.env")}})
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"openai", "mms"}, cfg.Speech.Providers)
	assert.Equal(t, "mp3", cfg.Speech.OpenAI.Format)
	assert.Equal(t, 512, cfg.Image.MaxDimension)
	assert.Equal(t, 85, cfg.Image.Quality, "unset values keep defaults")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("VISION_REPLAY_CAPACITY=7\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("VISION_REPLAY_CAPACITY") })

	cfg, err := Load(Options{EnvFiles: []string{envPath}})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Replay.Capacity)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(Options{
		ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"),
		EnvFiles:   []string{filepath.Join(t.TempDir(), "none.env")},
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown caption provider", func(c *Config) { c.Caption.Providers = []string{"blip2"} }},
		{"no speech providers", func(c *Config) { c.Speech.Providers = nil }},
		{"unknown speech provider", func(c *Config) { c.Speech.Providers = []string{"gtts"} }},
		{"zero sample rate", func(c *Config) { c.Speech.SampleRate = 0 }},
		{"zero tokens", func(c *Config) { c.Caption.MaxNewTokens = 0 }},
		{"quality out of range", func(c *Config) { c.Image.Quality = 101 }},
		{"zero replay capacity", func(c *Config) { c.Replay.Capacity = 0 }},
		{"zero pixel limit", func(c *Config) { c.Image.MaxMegapixels = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, 12*1024*1024, ServerConfig{BodyLimitMB: 12}.BodyLimit())
}
