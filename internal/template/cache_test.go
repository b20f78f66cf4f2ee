package template

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

type fakeStore struct {
	findFn func(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error)
	calls  int
}

func (f *fakeStore) FindActiveByName(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
	f.calls++
	if f.findFn != nil {
		return f.findFn(ctx, name, channel)
	}
	return nil, domain.ErrNotFound
}

func TestNewCacheRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := NewCache(nil, time.Minute); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestCacheResolveHitsStoreOnceWithinTTL(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		findFn: func(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
			return &domain.Template{Name: name, Channel: channel, Content: "body"}, nil
		},
	}

	cache, err := NewCache(store, time.Minute)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	for range 3 {
		tmpl, err := cache.Resolve(context.Background(), "order_confirmed", domain.ChannelSMS)
		if err != nil {
			t.Fatalf("Resolve() unexpected error = %v", err)
		}
		if tmpl.Name != "order_confirmed" {
			t.Fatalf("Resolve() template = %q", tmpl.Name)
		}
	}

	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}
}

func TestCacheResolveRefreshesAfterTTL(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		findFn: func(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
			return &domain.Template{Name: name, Channel: channel, Content: "body"}, nil
		},
	}

	cache, err := NewCache(store, time.Minute)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	current := time.Now()
	cache.now = func() time.Time { return current }

	if _, err := cache.Resolve(context.Background(), "order_confirmed", domain.ChannelSMS); err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := cache.Resolve(context.Background(), "order_confirmed", domain.ChannelSMS); err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}

	if store.calls != 2 {
		t.Fatalf("store calls = %d, want 2 after expiry", store.calls)
	}
}

func TestCacheResolvePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(&fakeStore{}, time.Minute)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	_, err = cache.Resolve(context.Background(), "nope", domain.ChannelEmail)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestCacheInvalidateForcesStoreLookup(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		findFn: func(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
			return &domain.Template{Name: name, Channel: channel, Content: "body"}, nil
		},
	}

	cache, err := NewCache(store, time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	if _, err := cache.Resolve(context.Background(), "order_confirmed", domain.ChannelSMS); err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	cache.Invalidate("order_confirmed", domain.ChannelSMS)
	if _, err := cache.Resolve(context.Background(), "order_confirmed", domain.ChannelSMS); err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}

	if store.calls != 2 {
		t.Fatalf("store calls = %d, want 2 after invalidate", store.calls)
	}
}
