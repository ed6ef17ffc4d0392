package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/vision-assistant/internal/config"
	"github.com/teslashibe/vision-assistant/internal/log"
	"github.com/teslashibe/vision-assistant/pkg/caption"
	"github.com/teslashibe/vision-assistant/pkg/tts"
)

// MockCaption is the caption returned by the "mock" captioner.
const MockCaption = "a placeholder photo used for testing"

// Registry owns the captioner and the synthesizer for the process.
// Both are built from configuration on first use.
type Registry struct {
	captioner   *Lazy[caption.Provider]
	synthesizer *Lazy[tts.Provider]
	logger      *slog.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithCaptioner installs a ready captioner instead of building one from config.
func WithCaptioner(p caption.Provider) RegistryOption {
	return func(r *Registry) { r.captioner = Ready(p) }
}

// WithSynthesizer installs a ready synthesizer instead of building one from config.
func WithSynthesizer(p tts.Provider) RegistryOption {
	return func(r *Registry) { r.synthesizer = Ready(p) }
}

// NewRegistry returns a registry for cfg. Nothing is constructed until
// Captioner or Synthesizer is called.
func NewRegistry(cfg *config.Config, opts ...RegistryOption) *Registry {
	logger := log.Component("models")
	r := &Registry{
		logger: logger,
		captioner: NewLazy(func() (caption.Provider, error) {
			logger.Info("loading captioner", "providers", cfg.Caption.Providers)
			return BuildCaptioner(cfg)
		}),
		synthesizer: NewLazy(func() (tts.Provider, error) {
			logger.Info("loading synthesizer", "providers", cfg.Speech.Providers)
			return BuildSynthesizer(context.Background(), cfg)
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Captioner returns the shared image-to-text provider.
func (r *Registry) Captioner() (caption.Provider, error) {
	return r.captioner.Get()
}

// Synthesizer returns the shared text-to-speech provider.
func (r *Registry) Synthesizer() (tts.Provider, error) {
	return r.synthesizer.Get()
}

// Health checks both handles, building them if needed.
// Keys are "caption" and "speech"; a nil value means healthy.
func (r *Registry) Health(ctx context.Context) map[string]error {
	status := make(map[string]error, 2)

	if p, err := r.Captioner(); err != nil {
		status["caption"] = err
	} else {
		status["caption"] = p.Health(ctx)
	}

	if p, err := r.Synthesizer(); err != nil {
		status["speech"] = err
	} else {
		status["speech"] = p.Health(ctx)
	}

	return status
}

// Close releases whichever handles were built.
func (r *Registry) Close() error {
	var errs []error
	if r.captioner.Loaded() {
		if p, err := r.captioner.Get(); err == nil {
			errs = append(errs, p.Close())
		}
	}
	if r.synthesizer.Loaded() {
		if p, err := r.synthesizer.Get(); err == nil {
			errs = append(errs, p.Close())
		}
	}
	return errors.Join(errs...)
}

// BuildCaptioner constructs the configured captioners, chained in order when
// more than one is named.
func BuildCaptioner(cfg *config.Config) (caption.Provider, error) {
	c := cfg.Caption
	logger := log.L()

	common := []caption.Option{
		caption.WithMaxNewTokens(c.MaxNewTokens),
		caption.WithPrompt(c.Prompt),
		caption.WithTimeout(c.Timeout),
		caption.WithLogger(logger),
	}
	endpoint := func(e config.EndpointConfig) []caption.Option {
		opts := append([]caption.Option{}, common...)
		if e.BaseURL != "" {
			opts = append(opts, caption.WithBaseURL(e.BaseURL))
		}
		if e.Model != "" {
			opts = append(opts, caption.WithModel(e.Model))
		}
		return append(opts, caption.WithAPIKey(e.APIKey))
	}

	var links []caption.Link
	for _, name := range c.Providers {
		var (
			p   caption.Provider
			err error
		)
		switch name {
		case "huggingface":
			p, err = caption.NewHuggingFace(endpoint(c.HuggingFace)...)
		case "openai":
			p, err = caption.NewOpenAI(endpoint(c.OpenAI)...)
		case "gemini":
			p, err = caption.NewGemini(endpoint(c.Gemini)...)
		case "mock":
			p = caption.NewMock(MockCaption)
		default:
			err = fmt.Errorf("unknown caption provider %q", name)
		}
		if err != nil {
			for _, l := range links {
				_ = l.Provider.Close()
			}
			return nil, fmt.Errorf("models: caption provider %s: %w", name, err)
		}
		links = append(links, caption.Link{Name: name, Provider: p})
	}

	switch len(links) {
	case 0:
		return nil, errors.New("models: no caption providers configured")
	case 1:
		return links[0].Provider, nil
	default:
		return caption.NewChain(logger, links...)
	}
}

// BuildSynthesizer constructs the configured speech providers, chained in
// order when more than one is named. ctx is used for credential discovery.
func BuildSynthesizer(ctx context.Context, cfg *config.Config) (tts.Provider, error) {
	s := cfg.Speech
	logger := log.L()

	common := []tts.Option{
		tts.WithSampleRate(s.SampleRate),
		tts.WithTimeout(s.Timeout),
		tts.WithLogger(logger),
	}
	voiced := func(v config.VoiceConfig) []tts.Option {
		opts := append([]tts.Option{}, common...)
		if v.BaseURL != "" {
			opts = append(opts, tts.WithBaseURL(v.BaseURL))
		}
		if v.Model != "" {
			opts = append(opts, tts.WithModel(v.Model))
		}
		if v.Voice != "" {
			opts = append(opts, tts.WithVoice(v.Voice))
		}
		if v.Format != "" {
			opts = append(opts, tts.WithOutputFormat(v.Format))
		}
		return append(opts, tts.WithAPIKey(v.APIKey))
	}

	var links []tts.Link
	for _, name := range s.Providers {
		var (
			p   tts.Provider
			err error
		)
		switch name {
		case "mms":
			p, err = tts.NewMMS(voiced(config.VoiceConfig{EndpointConfig: s.MMS})...)
		case "openai":
			p, err = tts.NewOpenAI(voiced(s.OpenAI)...)
		case "elevenlabs":
			p, err = tts.NewElevenLabs(voiced(s.ElevenLabs)...)
		case "google":
			opts := append([]tts.Option{}, common...)
			opts = append(opts,
				tts.WithAPIKey(s.Google.APIKey),
				tts.WithCredentialsFile(s.Google.CredentialsFile),
				tts.WithVoice(s.Google.Voice),
			)
			if s.Google.Language != "" {
				opts = append(opts, tts.WithLanguage(s.Google.Language))
			}
			p, err = tts.NewGoogle(ctx, opts...)
		case "translate":
			opts := append([]tts.Option{}, common...)
			if s.Translate.Language != "" {
				opts = append(opts, tts.WithLanguage(s.Translate.Language))
			}
			if s.Translate.BaseURL != "" {
				opts = append(opts, tts.WithBaseURL(s.Translate.BaseURL))
			}
			p, err = tts.NewTranslate(opts...)
		case "mock":
			p = tts.NewMock()
		default:
			err = fmt.Errorf("unknown speech provider %q", name)
		}
		if err != nil {
			for _, l := range links {
				_ = l.Provider.Close()
			}
			return nil, fmt.Errorf("models: speech provider %s: %w", name, err)
		}
		links = append(links, tts.Link{Name: name, Provider: p})
	}

	switch len(links) {
	case 0:
		return nil, errors.New("models: no speech providers configured")
	case 1:
		return links[0].Provider, nil
	default:
		return tts.NewChain(logger, links...)
	}
}
