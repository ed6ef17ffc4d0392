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
	providerGemini = "gemini"
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
)

// Gemini captions images with Google's Gemini multimodal models.
// Gemini uses its own REST format, so it is implemented directly.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = geminiBaseURL
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "caption.gemini"),
	}, nil
}

// Caption asks Gemini for a one-sentence description of the image.
func (g *Gemini) Caption(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}
	start := time.Now()

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]interface{}{
				{"text": g.config.prompt(req)},
				{"inline_data": map[string]string{
					"mime_type": req.mimeType(),
					"data":      base64.StdEncoding.EncodeToString(req.Image),
				}},
			}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.2,
			"maxOutputTokens": g.config.maxNewTokens(req),
		},
	}

	httpReq, body, err := newJSONRequest(ctx, g.url(), payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	resp, err := doWithRetry(ctx, g.http, httpReq, body, g.config, g.logger, providerGemini, g.parseError)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, ErrEmptyCaption)
	}

	return newResult(providerGemini, g.config.Model,
		result.Candidates[0].Content.Parts[0].Text, time.Since(start).Milliseconds())
}

// Health lists the configured model to verify the key.
func (g *Gemini) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/models/%s?key=%s", strings.TrimSuffix(g.config.BaseURL, "/"), g.config.Model, g.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(providerGemini, err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

func (g *Gemini) url() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(g.config.BaseURL, "/"), g.config.Model, g.config.APIKey)
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGemini,
	}
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
