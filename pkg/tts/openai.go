package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/vision-assistant/internal/httpc"
)

const (
	providerOpenAI = "openai"

	// openAIPCMRate is the fixed sample rate of OpenAI "pcm" output.
	openAIPCMRate = 24000
)

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"   // Neutral voice
	VoiceEcho    = "echo"    // Male voice
	VoiceFable   = "fable"   // British accent
	VoiceOnyx    = "onyx"    // Deep male voice
	VoiceNova    = "nova"    // Female voice
	VoiceShimmer = "shimmer" // Soft female voice
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

// OpenAI output formats understood by this provider.
const (
	OpenAIFormatPCM = "pcm"
	OpenAIFormatWAV = "wav"
	OpenAIFormatMP3 = "mp3"
)

// OpenAI implements Provider for OpenAI TTS using go-openai.
type OpenAI struct {
	config *Config
	client *openai.Client
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceShimmer
	cfg.OutputFormat = OpenAIFormatPCM
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	// Default voice if not set
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceShimmer
	}

	switch cfg.OutputFormat {
	case OpenAIFormatPCM, OpenAIFormatWAV, OpenAIFormatMP3:
	default:
		return nil, WrapError(providerOpenAI, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, cfg.OutputFormat))
	}

	httpClient := httpc.NewClient(cfg.Timeout)
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = httpClient

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		http:   httpClient,
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.ModelID),
		Input:          text,
		Voice:          openai.SpeechVoice(o.config.VoiceID),
		ResponseFormat: openai.SpeechResponseFormat(o.config.OutputFormat),
		Speed:          o.config.VoiceSettings.Speed,
	}

	var (
		audio   []byte
		lastErr error
	)
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		audio, lastErr = o.speech(ctx, req)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.IsRetryable() {
			return nil, lastErr
		}
		o.logger.Warn("retrying request",
			"attempt", attempt+1,
			"error", lastErr,
		)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if len(audio) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	result := &AudioResult{
		Audio:     audio,
		Format:    o.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
	}
	switch result.Format.Encoding {
	case EncodingPCM16:
		result.Duration = pcmDuration(len(audio), openAIPCMRate)
	case EncodingMP3:
		result.Duration = mp3Duration(len(audio), 128)
	}
	return result, nil
}

// Health fetches the configured model to verify connectivity and the key.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.GetModel(ctx, o.config.ModelID); err != nil {
		return convertOpenAIError(err)
	}
	return nil
}

// Close releases resources held by the provider.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

func (o *OpenAI) speech(ctx context.Context, req openai.CreateSpeechRequest) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, convertOpenAIError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	return audio, nil
}

// outputFormat returns the audio format configuration.
func (o *OpenAI) outputFormat() AudioFormat {
	switch o.config.OutputFormat {
	case OpenAIFormatMP3:
		return AudioFormat{Encoding: EncodingMP3, SampleRate: openAIPCMRate, Channels: 1}
	case OpenAIFormatWAV:
		return AudioFormat{Encoding: EncodingWAV, SampleRate: openAIPCMRate, Channels: 1, BitDepth: 16}
	default:
		return AudioFormat{Encoding: EncodingPCM16, SampleRate: openAIPCMRate, Channels: 1, BitDepth: 16}
	}
}

// convertOpenAIError maps go-openai errors onto APIError.
func convertOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerOpenAI,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerOpenAI,
		}
	}

	return WrapError(providerOpenAI, err)
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
