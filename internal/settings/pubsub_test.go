package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/models"
)

func TestWatchInvalidationsDropsCacheOnPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := db.InitRedis(mr.Addr())
	if err != nil {
		t.Fatalf("init redis: %v", err)
	}
	defer rs.Close()

	store := &fakeStore{current: models.AdSettings{AdServerPercentage: 10}}
	p := newTestProvider(t, store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.WatchInvalidations(ctx, rs)

	s, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.AdServerPercentage != 10 {
		t.Fatalf("percentage = %d, want 10", s.AdServerPercentage)
	}

	if err := store.UpdateAdSettings(ctx, 80); err != nil {
		t.Fatalf("update store: %v", err)
	}

	// The subscription attaches asynchronously; keep publishing until the
	// invalidation lands or the deadline passes. Without it the hour-long
	// TTL would keep serving 10.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := rs.PublishSettingsUpdate(ctx); err != nil {
			t.Fatalf("publish: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		s, err = p.Get(ctx)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if s.AdServerPercentage == 80 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache never invalidated, percentage = %d", s.AdServerPercentage)
		}
	}
}
