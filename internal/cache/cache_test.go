package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopProviderAlwaysMisses(t *testing.T) {
	var p Provider = NoopProvider{}
	if err := p.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := p.Get(context.Background(), "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryProviderRoundTrip(t *testing.T) {
	p := NewMemoryProvider(16)
	defer p.Close()
	ctx := context.Background()

	if _, err := p.Get(ctx, "plan"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss before set, got %v", err)
	}
	value := []byte(`{"steps":[]}`)
	if err := p.Set(ctx, "plan", value, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'x'

	got, err := p.Get(ctx, "plan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"steps":[]}` {
		t.Fatalf("stored value was aliased: %s", got)
	}

	if err := p.Del(ctx, "plan"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := p.Get(ctx, "plan"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryProviderExpiry(t *testing.T) {
	p := NewMemoryProvider(0)
	defer p.Close()
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestNewValkeyProviderRequiresAddr(t *testing.T) {
	if _, err := NewValkeyProvider(ValkeyConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestValkeyOptionsDefaults(t *testing.T) {
	cfg := ValkeyConfig{Addr: "cache.internal:6380", TLS: true}
	normaliseDurations(&cfg)
	opts := valkeyOptions(cfg)
	if opts.DialTimeout != 2*time.Second || opts.MaxRetries != 1 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("expected tls server name, got %+v", opts.TLSConfig)
	}
}
