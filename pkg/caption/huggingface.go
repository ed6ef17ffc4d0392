package caption

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/vision-assistant/internal/httpc"
)

const (
	huggingFaceBaseURL  = "https://api-inference.huggingface.co"
	providerHuggingFace = "huggingface"

	// ModelBLIPBase is the default captioner.
	ModelBLIPBase = "Salesforce/blip-image-captioning-base"

	// ModelBLIPLarge trades latency for more detailed captions.
	ModelBLIPLarge = "Salesforce/blip-image-captioning-large"
)

// HuggingFace captions images with an image-to-text model served by the
// Hugging Face Inference API (or any server speaking the same protocol).
type HuggingFace struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewHuggingFace creates a Hugging Face captioning provider.
// The API key is optional for self-hosted endpoints.
func NewHuggingFace(opts ...Option) (*HuggingFace, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = huggingFaceBaseURL
	cfg.Model = ModelBLIPBase
	cfg.Apply(opts...)

	if cfg.Model == "" {
		return nil, WrapError(providerHuggingFace, fmt.Errorf("model required"))
	}

	return &HuggingFace{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "caption.huggingface"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Caption describes an image with the configured model.
func (h *HuggingFace) Caption(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, WrapError(providerHuggingFace, err)
	}
	start := time.Now()

	payload := map[string]interface{}{
		"inputs": base64.StdEncoding.EncodeToString(req.Image),
		"parameters": map[string]interface{}{
			"max_new_tokens": h.config.maxNewTokens(req),
		},
		"options": map[string]interface{}{
			"wait_for_model": true,
		},
	}

	httpReq, body, err := newJSONRequest(ctx, h.modelURL(), payload)
	if err != nil {
		return nil, WrapError(providerHuggingFace, fmt.Errorf("create request: %w", err))
	}
	h.setHeaders(httpReq)

	resp, err := doWithRetry(ctx, h.client, httpReq, body, h.config, h.logger, providerHuggingFace, h.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, h.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerHuggingFace, fmt.Errorf("read response: %w", err))
	}

	text, err := parseGeneratedText(raw)
	if err != nil {
		return nil, WrapError(providerHuggingFace, err)
	}

	latency := time.Since(start).Milliseconds()
	h.logger.Debug("captioned image",
		"bytes", len(req.Image),
		"chars", len(text),
		"latency_ms", latency,
		"model", h.config.Model,
	)

	return newResult(providerHuggingFace, h.config.Model, text, latency)
}

// Health checks that the model endpoint is reachable and the token is accepted.
func (h *HuggingFace) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.modelURL(), nil)
	if err != nil {
		return WrapError(providerHuggingFace, err)
	}
	h.setHeaders(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return WrapError(providerHuggingFace, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	// The inference API answers GET on a model with 200 or 405; both prove reachability.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500 {
		return h.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (h *HuggingFace) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *HuggingFace) modelURL() string {
	return h.baseURL + "/models/" + h.config.Model
}

func (h *HuggingFace) setHeaders(req *http.Request) {
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")
}

// parseError reads a Hugging Face error body: {"error": "...", "estimated_time": 12.3}.
func (h *HuggingFace) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error         json.RawMessage `json:"error"`
		EstimatedTime float64         `json:"estimated_time"`
	}

	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil && len(errResp.Error) > 0 {
		var s string
		if json.Unmarshal(errResp.Error, &s) == nil {
			message = s
		} else {
			message = string(errResp.Error)
		}
		if errResp.EstimatedTime > 0 {
			code = "model_loading"
			message = fmt.Sprintf("%s (estimated %.0fs)", message, errResp.EstimatedTime)
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerHuggingFace,
	}
}

// parseGeneratedText extracts generated_text from either a list of results
// (the pipeline contract) or a single result object.
func parseGeneratedText(raw []byte) (string, error) {
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", ErrEmptyCaption
		}
		return list[0].GeneratedText, nil
	}

	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return single.GeneratedText, nil
}

// Verify HuggingFace implements Provider at compile time.
var _ Provider = (*HuggingFace)(nil)
