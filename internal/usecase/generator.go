package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prospect-sim/internal/domain"
)

// TextGenerator produces the prospect's next line from chat messages.
type TextGenerator interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

type namer interface {
	Name() string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

var errNoProviders = errors.New("usecase: no text generation providers configured")

// ProviderChain asks each provider in order and returns the first non-empty
// reply. It is itself a TextGenerator. Under a deadline each attempt gets an
// even share of the time left, so a hanging provider cannot starve the ones
// after it.
type ProviderChain struct {
	providers []TextGenerator
	logger    *slog.Logger
}

func NewProviderChain(logger *slog.Logger, providers ...TextGenerator) *ProviderChain {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]TextGenerator, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &ProviderChain{providers: kept, logger: logger}
}

// Len reports how many providers the chain will try.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}

func (c *ProviderChain) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(c.providers) == 0 {
		return "", errNoProviders
	}
	var errs []error
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := providerName(p)
		start := time.Now()
		text, err := c.attempt(ctx, p, len(c.providers)-i, messages)
		attrs := []any{"provider", name, "latency_ms", time.Since(start).Milliseconds()}
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok {
				attrs = append(attrs, "status", status)
			}
			c.logger.Debug("provider failed", append(attrs, "error", err)...)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			c.logger.Debug("provider returned empty text", attrs...)
			errs = append(errs, fmt.Errorf("%s: empty reply", name))
			continue
		}
		c.logger.Debug("provider replied", attrs...)
		return text, nil
	}
	return "", errors.Join(errs...)
}

// attempt calls p with its share of the deadline, split across the providers
// still to be tried.
func (c *ProviderChain) attempt(ctx context.Context, p TextGenerator, remaining int, messages []domain.ChatMessage) (string, error) {
	if deadline, ok := ctx.Deadline(); ok && remaining > 1 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Until(deadline)/time.Duration(remaining))
		defer cancel()
	}
	return p.Generate(ctx, messages)
}

func providerName(p TextGenerator) string {
	if n, ok := p.(namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
