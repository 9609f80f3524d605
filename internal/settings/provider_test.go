package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
)

type fakeStore struct {
	mu      sync.Mutex
	current models.AdSettings
	loads   int
	err     error
}

func (f *fakeStore) GetAdSettings(ctx context.Context) (models.AdSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return models.AdSettings{}, f.err
	}
	return f.current, nil
}

func (f *fakeStore) UpdateAdSettings(ctx context.Context, percentage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.current.AdServerPercentage = percentage
	return nil
}

func newTestProvider(t *testing.T, store Store, ttl time.Duration) *Provider {
	return NewProvider(store, ttl, zaptest.NewLogger(t), observability.NewMockMetricsRegistry())
}

func TestGetCachesWithinTTL(t *testing.T) {
	store := &fakeStore{current: models.AdSettings{AdServerPercentage: 30}}
	p := newTestProvider(t, store, time.Minute)

	for i := 0; i < 10; i++ {
		s, err := p.Get(context.Background())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if s.AdServerPercentage != 30 {
			t.Fatalf("percentage = %d, want 30", s.AdServerPercentage)
		}
	}
	if store.loads != 1 {
		t.Fatalf("expected 1 storage load, got %d", store.loads)
	}
}

func TestGetReloadsAfterInvalidate(t *testing.T) {
	store := &fakeStore{current: models.AdSettings{AdServerPercentage: 30}}
	p := newTestProvider(t, store, time.Minute)

	if _, err := p.Get(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}
	store.mu.Lock()
	store.current.AdServerPercentage = 70
	store.mu.Unlock()

	// Still cached
	s, _ := p.Get(context.Background())
	if s.AdServerPercentage != 30 {
		t.Fatalf("expected cached 30, got %d", s.AdServerPercentage)
	}

	p.Invalidate()
	s, _ = p.Get(context.Background())
	if s.AdServerPercentage != 70 {
		t.Fatalf("expected fresh 70, got %d", s.AdServerPercentage)
	}
}

func TestUpdateValidatesRange(t *testing.T) {
	store := &fakeStore{}
	p := newTestProvider(t, store, time.Minute)

	for _, pct := range []int{-1, 101, 500} {
		if err := p.Update(context.Background(), pct); !errors.Is(err, ErrInvalidPercentage) {
			t.Fatalf("Update(%d) = %v, want ErrInvalidPercentage", pct, err)
		}
	}
	if err := p.Update(context.Background(), 45); err != nil {
		t.Fatalf("valid update: %v", err)
	}
	s, _ := p.Get(context.Background())
	if s.AdServerPercentage != 45 {
		t.Fatalf("expected update to be visible immediately, got %d", s.AdServerPercentage)
	}
}

func TestGetPropagatesStorageError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	p := newTestProvider(t, store, time.Minute)
	if _, err := p.Get(context.Background()); err == nil {
		t.Fatal("expected error when storage is down")
	}
}
