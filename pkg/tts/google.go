package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/vision-assistant/pkg/wav"
)

const providerGoogle = "google"

// Google implements Provider for Google Cloud Text-to-Speech.
// Audio is requested as LINEAR16, which arrives as a complete WAV file.
type Google struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Google Cloud TTS provider. Credentials come from, in
// order: an API key, a service account file, Application Default Credentials.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.LanguageCode = "en-US"
	cfg.Apply(opts...)

	clientOpts, err := googleClientOptions(ctx, cfg)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

func googleClientOptions(ctx context.Context, cfg *Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	default:
		ts, err := google.DefaultTokenSource(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	return opts, nil
}

// Synthesize converts text to LINEAR16 WAV audio.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}
	start := time.Now()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         g.config.VoiceID,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.config.SampleRate),
			SpeakingRate:    g.config.VoiceSettings.Speed,
		},
	}

	resp, err := g.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, convertGoogleError(err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}

	w, err := wav.Decode(audio)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", g.config.VoiceID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: w.SampleRate, Channels: 1, BitDepth: 16},
		Duration:  w.Duration(),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health lists voices for the configured language.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.service.Voices.List().LanguageCode(g.config.LanguageCode).Context(ctx).Do()
	if err != nil {
		return convertGoogleError(err)
	}
	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
}

// convertGoogleError maps googleapi errors onto APIError.
func convertGoogleError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		code := ""
		if len(gErr.Errors) > 0 {
			code = gErr.Errors[0].Reason
		}
		return &APIError{
			StatusCode: gErr.Code,
			Message:    gErr.Message,
			Code:       code,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
