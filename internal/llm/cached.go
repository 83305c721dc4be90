package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unifyiq/unifyiq/internal/cache"
)

// CachedCompleter memoises completions for identical prompts. Cache failures are logged
// and never fail the call.
type CachedCompleter struct {
	next      Completer
	provider  cache.Provider
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedCompleter wraps next. namespace should change whenever the model does.
func NewCachedCompleter(next Completer, provider cache.Provider, namespace string, ttl time.Duration, logger *slog.Logger) *CachedCompleter {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCompleter{next: next, provider: provider, namespace: namespace, ttl: ttl, logger: logger}
}

// Complete implements Completer.
func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	key := c.key(prompt)
	if hit, err := c.provider.Get(ctx, key); err == nil {
		return string(hit), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("completion cache read failed", slog.Any("error", err))
	}

	text, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.provider.Set(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("completion cache write failed", slog.Any("error", err))
	}
	return text, nil
}

func (c *CachedCompleter) key(prompt string) string {
	return fmt.Sprintf("unifyiq:llm:%s:%016x", c.namespace, xxhash.Sum64String(prompt))
}
