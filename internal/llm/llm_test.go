package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unifyiq/unifyiq/internal/cache"
)

type failingProvider struct{ cache.NoopProvider }

func (failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingProvider) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestCachedCompleterHit(t *testing.T) {
	calls := 0
	inner := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		return `{"steps":[]}` + prompt, nil
	})
	store := cache.NewMemoryProvider(8)
	defer store.Close()
	c := NewCachedCompleter(inner, store, "test-model", time.Minute, nil)

	first, err := c.Complete(context.Background(), "q")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	second, err := c.Complete(context.Background(), "q")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first != second {
		t.Fatalf("cached reply differs: %q vs %q", first, second)
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}

	if _, err := c.Complete(context.Background(), "other"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if calls != 2 {
		t.Fatalf("distinct prompt should miss, calls=%d", calls)
	}
}

func TestCachedCompleterDoesNotCacheErrors(t *testing.T) {
	calls := 0
	inner := CompleterFunc(func(context.Context, string) (string, error) {
		calls++
		return "", context.DeadlineExceeded
	})
	store := cache.NewMemoryProvider(8)
	defer store.Close()
	c := NewCachedCompleter(inner, store, "m", time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), "q"); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("errors must not be cached, calls=%d", calls)
	}
}

func TestCachedCompleterSurvivesCacheOutage(t *testing.T) {
	inner := CompleterFunc(func(context.Context, string) (string, error) { return "ok", nil })
	c := NewCachedCompleter(inner, failingProvider{}, "m", time.Minute, nil)
	got, err := c.Complete(context.Background(), "q")
	if err != nil || got != "ok" {
		t.Fatalf("expected passthrough, got %q, %v", got, err)
	}
}

func TestNewGeminiCompleterRequiresKey(t *testing.T) {
	if _, err := NewGeminiCompleter(context.Background(), GeminiConfig{}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}
