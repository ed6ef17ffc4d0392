package caption

import (
	"context"
	"errors"
	"log/slog"
)

// Link is one named captioner in a Chain.
type Link struct {
	Name     string
	Provider Provider
}

// Chain falls back through captioners in order until one answers.
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
		logger: logger.With("component", "caption.chain"),
	}, nil
}

// Caption validates req once, then asks each captioner in turn.
// A result without a Provider is stamped with the link name.
func (c *Chain) Caption(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var failed []error
	for i, link := range c.links {
		res, err := link.Provider.Caption(ctx, req)
		if err == nil {
			if res.Provider == "" {
				res.Provider = link.Name
			}
			if i > 0 {
				c.logger.Info("fallback captioner used",
					"provider", link.Name,
					"model", res.Model,
					"failed", i,
				)
			}
			return res, nil
		}

		failed = append(failed, attribute(link.Name, err))
		c.logger.Warn("captioner failed", "provider", link.Name, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: failed}
}

// Health succeeds while at least one captioner is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var unhealthy []error
	for _, link := range c.links {
		if err := link.Provider.Health(ctx); err != nil {
			unhealthy = append(unhealthy, attribute(link.Name, err))
		}
	}
	if len(unhealthy) == len(c.links) {
		return &ChainError{Errors: unhealthy}
	}
	if len(unhealthy) > 0 {
		c.logger.Warn("caption chain degraded", "unhealthy", len(unhealthy), "total", len(c.links))
	}
	return nil
}

// Close closes every captioner and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, link := range c.links {
		if err := link.Provider.Close(); err != nil {
			errs = append(errs, attribute(link.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Links returns the chain's captioners in order.
func (c *Chain) Links() []Link {
	return c.links
}

func attribute(name string, err error) error {
	var pe *ProviderError
	var ae *APIError
	if errors.As(err, &pe) || errors.As(err, &ae) {
		return err
	}
	return WrapError(name, err)
}

var _ Provider = (*Chain)(nil)
