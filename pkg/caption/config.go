package caption

import (
	"log/slog"
	"time"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string
	APIKey  string

	// Model is the captioning or vision model.
	Model string

	// Request defaults
	MaxNewTokens int
	Prompt       string

	// Timeouts
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxNewTokens sets the default caption length limit.
func WithMaxNewTokens(n int) Option {
	return func(c *Config) { c.MaxNewTokens = n }
}

// WithPrompt sets the default instruction for vision chat models.
func WithPrompt(prompt string) Option {
	return func(c *Config) { c.Prompt = prompt }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults shared by every provider.
// Constructors then fill in provider-specific URL and model defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxNewTokens: 80,
		Prompt:       "Describe the objects and the scene in this photo in one sentence.",
		Timeout:      60 * time.Second,
		MaxRetries:   3,
		RetryDelay:   500 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// maxNewTokens resolves the per-request limit against the default.
func (c *Config) maxNewTokens(req *Request) int {
	if req.MaxNewTokens > 0 {
		return req.MaxNewTokens
	}
	return c.MaxNewTokens
}

// prompt resolves the per-request prompt against the default.
func (c *Config) prompt(req *Request) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return c.Prompt
}
