package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/vision-assistant/internal/httpc"
	"github.com/teslashibe/vision-assistant/pkg/wav"
)

const (
	providerMMS = "mms"

	// ModelMMSEnglish is Meta's Massively Multilingual Speech English VITS voice.
	ModelMMSEnglish = "facebook/mms-tts-eng"

	mmsDefaultURL = "http://localhost:8008/synthesize"
)

// MMS synthesizes speech through a text-to-speech pipeline endpoint serving a
// VITS model such as facebook/mms-tts-eng. The endpoint answers either JSON
// {"audio": [...], "sampling_rate": 16000} or a WAV body.
type MMS struct {
	config *Config
	client *http.Client
	logger *slog.Logger
	url    string
}

// NewMMS creates an MMS provider. The API key is optional.
func NewMMS(opts ...Option) (*MMS, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelMMSEnglish
	cfg.BaseURL = mmsDefaultURL
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, WrapError(providerMMS, fmt.Errorf("endpoint URL required"))
	}

	return &MMS{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts.mms"),
		url:    cfg.BaseURL,
	}, nil
}

// Synthesize converts text to a float waveform.
func (m *MMS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerMMS, ErrEmptyText)
	}
	start := time.Now()

	payload := map[string]interface{}{
		"inputs": text,
		"model":  m.config.ModelID,
	}
	req, body, err := newJSONRequest(ctx, m.url, payload)
	if err != nil {
		return nil, WrapError(providerMMS, fmt.Errorf("create request: %w", err))
	}
	if m.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	}
	req.Header.Set("Accept", "application/json, audio/wav")

	resp, err := doWithRetry(ctx, m.client, req, body, m.config, m.logger, providerMMS, m.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, m.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerMMS, fmt.Errorf("read response: %w", err))
	}

	result, err := m.decode(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, WrapError(providerMMS, err)
	}
	result.CharCount = len(text)
	result.LatencyMs = time.Since(start).Milliseconds()

	m.logger.Debug("synthesized audio",
		"chars", len(text),
		"encoding", result.Format.Encoding,
		"sample_rate", result.Format.SampleRate,
		"latency_ms", result.LatencyMs,
	)

	return result, nil
}

// Health checks that the endpoint is reachable.
func (m *MMS) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return WrapError(providerMMS, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return WrapError(providerMMS, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return m.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (m *MMS) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// decode turns a response body into an AudioResult based on its content type.
func (m *MMS) decode(contentType string, raw []byte) (*AudioResult, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		w, err := wav.Decode(raw)
		if err != nil {
			return nil, err
		}
		return &AudioResult{
			Audio:    raw,
			Format:   AudioFormat{Encoding: EncodingWAV, SampleRate: w.SampleRate, Channels: 1, BitDepth: 16},
			Duration: w.Duration(),
		}, nil
	default:
		if strings.HasPrefix(mediaType, "audio/") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, mediaType)
		}
	}

	var out struct {
		Audio        json.RawMessage `json:"audio"`
		SamplingRate int             `json:"sampling_rate"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	samples, err := squeeze(out.Audio)
	if err != nil {
		return nil, err
	}

	rate := out.SamplingRate
	if rate == 0 {
		rate = m.config.SampleRate
	}
	w := wav.Waveform{Samples: samples, SampleRate: rate}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	return &AudioResult{
		Samples:  samples,
		Format:   AudioFormat{Encoding: EncodingFloat32, SampleRate: rate, Channels: 1, BitDepth: 32},
		Duration: w.Duration(),
	}, nil
}

// parseError reads a JSON {"error": "..."} or {"detail": "..."} body.
func (m *MMS) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			message = errResp.Error
		} else if errResp.Detail != "" {
			message = errResp.Detail
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerMMS,
	}
}

// squeeze flattens a JSON number array, removing every size-1 dimension.
// [[0.1, 0.2]] and [[0.1], [0.2]] both become [0.1, 0.2].
func squeeze(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	if len(nested) == 1 {
		return squeeze(nested[0])
	}

	// Column vector: every row must hold exactly one value.
	out := make([]float32, 0, len(nested))
	for _, row := range nested {
		values, err := squeeze(row)
		if err != nil {
			return nil, err
		}
		if len(values) != 1 {
			return nil, ErrBadShape
		}
		out = append(out, values[0])
	}
	return out, nil
}

// Verify MMS implements Provider at compile time.
var _ Provider = (*MMS)(nil)
