package caption

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/vision-assistant/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI captions images with a vision-capable chat model. It works with any
// OpenAI-compatible server (OpenAI, Groq, vLLM, llama.cpp) via WithBaseURL.
type OpenAI struct {
	config *Config
	client *openai.Client
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI vision captioning provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = openai.GPT4oMini
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
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
		logger: cfg.Logger.With("component", "caption.openai"),
	}, nil
}

// Caption sends the image as a data URI alongside the caption prompt.
func (o *OpenAI) Caption(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	start := time.Now()

	chatReq := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		MaxTokens:   o.config.maxNewTokens(req),
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: o.config.prompt(req)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURI(req.Image, req.mimeType()),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	var (
		resp    openai.ChatCompletionResponse
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

		var err error
		resp, err = o.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			lastErr = nil
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = convertOpenAIError(err)
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.IsRetryable() {
			return nil, lastErr
		}
		o.logger.Warn("request failed, retrying",
			"attempt", attempt+1,
			"error", err,
		)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyCaption)
	}

	model := resp.Model
	if model == "" {
		model = o.config.Model
	}
	return newResult(providerOpenAI, model, resp.Choices[0].Message.Content, time.Since(start).Milliseconds())
}

// Health fetches the configured model to verify connectivity and the key.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.GetModel(ctx, o.config.Model); err != nil {
		return convertOpenAIError(err)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
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

// imageDataURI encodes image bytes as a data URI.
func imageDataURI(image []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
