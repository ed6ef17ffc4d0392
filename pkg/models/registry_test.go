package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/vision-assistant/internal/config"
	"github.com/teslashibe/vision-assistant/pkg/caption"
	"github.com/teslashibe/vision-assistant/pkg/tts"
)

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.Caption.Providers = []string{"mock"}
	cfg.Speech.Providers = []string{"mock"}
	return cfg
}

func TestRegistryBuildsMocks(t *testing.T) {
	r := NewRegistry(mockConfig())
	defer r.Close()

	c, err := r.Captioner()
	require.NoError(t, err)
	res, err := c.Caption(context.Background(), &caption.Request{Image: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Equal(t, "A placeholder photo used for testing.", res.Text)

	s, err := r.Synthesizer()
	require.NoError(t, err)
	audio, err := s.Synthesize(context.Background(), res.Text)
	require.NoError(t, err)
	assert.Equal(t, tts.EncodingFloat32, audio.Format.Encoding)

	again, err := r.Captioner()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestRegistryChainsMultipleProviders(t *testing.T) {
	cfg := mockConfig()
	cfg.Caption.Providers = []string{"mock", "mock"}
	cfg.Speech.Providers = []string{"mock", "mock"}

	c, err := BuildCaptioner(cfg)
	require.NoError(t, err)
	assert.IsType(t, &caption.Chain{}, c)

	s, err := BuildSynthesizer(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &tts.Chain{}, s)
}

func TestRegistryBuildsRemoteProviders(t *testing.T) {
	cfg := mockConfig()
	cfg.Caption.Providers = []string{"huggingface"}
	cfg.Speech.Providers = []string{"mms", "translate"}

	c, err := BuildCaptioner(cfg)
	require.NoError(t, err)
	assert.IsType(t, &caption.HuggingFace{}, c)

	s, err := BuildSynthesizer(context.Background(), cfg)
	require.NoError(t, err)
	chain, ok := s.(*tts.Chain)
	require.True(t, ok)
	links := chain.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "mms", links[0].Name)
	assert.Equal(t, "translate", links[1].Name)
}

func TestRegistryMissingKey(t *testing.T) {
	cfg := mockConfig()
	cfg.Caption.Providers = []string{"openai"}
	cfg.Caption.OpenAI.APIKey = ""

	r := NewRegistry(cfg)
	_, err := r.Captioner()
	require.Error(t, err)
	assert.ErrorIs(t, err, caption.ErrNoAPIKey)

	status := r.Health(context.Background())
	assert.Error(t, status["caption"])
	assert.NoError(t, status["speech"])
}

func TestRegistryUnknownProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Speech.Providers = []string{"festival"}

	_, err := BuildSynthesizer(context.Background(), cfg)
	assert.ErrorContains(t, err, "festival")
}

func TestRegistryWithInjectedProviders(t *testing.T) {
	cm := caption.NewMock("a cat")
	sm := tts.NewMock()
	sm.HealthFunc = func(ctx context.Context) error { return errors.New("offline") }

	r := NewRegistry(mockConfig(), WithCaptioner(cm), WithSynthesizer(sm))

	c, err := r.Captioner()
	require.NoError(t, err)
	assert.Same(t, cm, c)

	status := r.Health(context.Background())
	assert.NoError(t, status["caption"])
	assert.EqualError(t, status["speech"], "offline")

	require.NoError(t, r.Close())
	assert.Equal(t, 1, cm.CallCount("Close"))
}

func TestRegistryCloseSkipsUnbuilt(t *testing.T) {
	r := NewRegistry(mockConfig())
	assert.NoError(t, r.Close())
}
