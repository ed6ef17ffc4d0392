package tts

import (
	"context"
	"errors"
	"log/slog"
)

// Link is one named voice in a Chain.
type Link struct {
	Name     string
	Provider Provider
}

// Chain implements Provider by falling back through voices in order.
type Chain struct {
	links  []Link
	logger *slog.Logger
}

// NewChain creates a chain over links. A nil logger uses slog.Default.
func NewChain(logger *slog.Logger, links ...Link) (*Chain, error) {
	if len(links) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		links:  links,
		logger: logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize returns the first voice's audio that succeeds. Failures are
// attributed to their link name in the returned ChainError.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var failed []error
	for i, link := range c.links {
		result, err := link.Provider.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback voice used",
					"provider", link.Name,
					"encoding", result.Format.Encoding,
					"sample_rate", result.Format.SampleRate,
					"skipped", c.names(i),
				)
			}
			return result, nil
		}

		failed = append(failed, attribute(link.Name, err))
		c.logger.Warn("voice failed", "provider", link.Name, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: failed}
}

// Health succeeds while at least one voice is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var unhealthy []error
	var down []string
	for _, link := range c.links {
		if err := link.Provider.Health(ctx); err != nil {
			unhealthy = append(unhealthy, attribute(link.Name, err))
			down = append(down, link.Name)
		}
	}

	switch {
	case len(unhealthy) == len(c.links):
		return &ChainError{Errors: unhealthy}
	case len(unhealthy) > 0:
		c.logger.Warn("voice chain degraded", "down", down)
	}
	return nil
}

// Close closes every voice and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, link := range c.links {
		if err := link.Provider.Close(); err != nil {
			errs = append(errs, attribute(link.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Links returns the chain's voices in order.
func (c *Chain) Links() []Link {
	return c.links
}

func (c *Chain) names(n int) []string {
	names := make([]string, 0, n)
	for _, link := range c.links[:n] {
		names = append(names, link.Name)
	}
	return names
}

// attribute tags err with the link name unless a provider already did.
func attribute(name string, err error) error {
	var pe *ProviderError
	var ae *APIError
	if errors.As(err, &pe) || errors.As(err, &ae) {
		return err
	}
	return WrapError(name, err)
}

var _ Provider = (*Chain)(nil)
