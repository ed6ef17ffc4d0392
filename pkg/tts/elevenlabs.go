package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/vision-assistant/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs
const (
	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model (~300ms latency).
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs output formats. pcm_* is headerless PCM16 at the named rate.
const (
	ElevenLabsPCM16k = "pcm_16000"
	ElevenLabsPCM22k = "pcm_22050"
	ElevenLabsPCM24k = "pcm_24000"
	ElevenLabsMP3    = "mp3_44100_128"
)

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// ResolveElevenLabsVoice returns the voice ID for a preset name,
// or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[strings.ToLower(name)]; ok {
		return id
	}
	return name
}

// ElevenLabs implements Provider for ElevenLabs TTS.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.OutputFormat = ElevenLabsPCM16k
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	cfg.VoiceID = ResolveElevenLabsVoice(cfg.VoiceID)

	if _, _, err := parseElevenLabsFormat(cfg.OutputFormat); err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(e.config.VoiceID), url.QueryEscape(e.config.OutputFormat))

	req, body, err := newJSONRequest(ctx, endpoint, e.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	e.setHeaders(req)

	resp, err := doWithRetry(ctx, e.client, req, body, e.config, e.logger, providerElevenLabs, e.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerElevenLabs, ErrEmptyAudio)
	}

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	format := e.outputFormat()
	result := &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
	}
	if format.Encoding == EncodingPCM16 {
		result.Duration = pcmDuration(len(audio), format.SampleRate)
	} else {
		result.Duration = mp3Duration(len(audio), elevenLabsBitrate(e.config.OutputFormat))
	}
	return result, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

// buildPayload constructs the API request payload.
func (e *ElevenLabs) buildPayload(text string) map[string]interface{} {
	settings := map[string]interface{}{
		"stability":         e.config.VoiceSettings.Stability,
		"similarity_boost":  e.config.VoiceSettings.SimilarityBoost,
		"style":             e.config.VoiceSettings.Style,
		"use_speaker_boost": e.config.VoiceSettings.SpeakerBoost,
	}
	if e.config.VoiceSettings.Speed > 0 {
		settings["speed"] = e.config.VoiceSettings.Speed
	}
	return map[string]interface{}{
		"text":           text,
		"model_id":       e.config.ModelID,
		"voice_settings": settings,
	}
}

// setHeaders sets required HTTP headers.
func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
	if strings.HasPrefix(e.config.OutputFormat, "mp3") {
		req.Header.Set("Accept", "audio/mpeg")
	} else {
		req.Header.Set("Accept", "audio/pcm")
	}
}

// parseError reads and parses an error response.
func (e *ElevenLabs) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		message = errResp.Detail.Message
		code = errResp.Detail.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerElevenLabs,
	}
}

// outputFormat returns the audio format configuration.
func (e *ElevenLabs) outputFormat() AudioFormat {
	enc, rate, _ := parseElevenLabsFormat(e.config.OutputFormat)
	format := AudioFormat{Encoding: enc, SampleRate: rate, Channels: 1}
	if enc == EncodingPCM16 {
		format.BitDepth = 16
	}
	return format
}

// parseElevenLabsFormat splits codec_rate[_bitrate] into encoding and sample rate.
func parseElevenLabsFormat(format string) (Encoding, int, error) {
	parts := strings.Split(format, "_")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format)
	}
	rate, err := strconv.Atoi(parts[1])
	if err != nil || rate <= 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format)
	}
	switch parts[0] {
	case "pcm":
		return EncodingPCM16, rate, nil
	case "mp3":
		return EncodingMP3, rate, nil
	default:
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format)
	}
}

// elevenLabsBitrate returns the kbps suffix of an mp3 format, 128 when absent.
func elevenLabsBitrate(format string) int {
	parts := strings.Split(format, "_")
	if len(parts) == 3 {
		if kbps, err := strconv.Atoi(parts[2]); err == nil {
			return kbps
		}
	}
	return 128
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
