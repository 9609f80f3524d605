package events

import (
	"context"
	"sync"

	"github.com/clinicdex/adcore/internal/models"
)

// MemoryStore implements Store in memory with the same insert-if-absent
// semantics as the Postgres implementation. Used by unit tests, including
// concurrency tests for the idempotency invariant.
type MemoryStore struct {
	mu          sync.Mutex
	Impressions map[string]models.Impression
	Clicks      map[string]models.Click
	Conversions map[string]models.Conversion
	// Err, when set, is returned from every write to exercise best-effort
	// failure handling.
	Err error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Impressions: make(map[string]models.Impression),
		Clicks:      make(map[string]models.Click),
		Conversions: make(map[string]models.Conversion),
	}
}

func (m *MemoryStore) InsertImpression(ctx context.Context, imp models.Impression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.Impressions[imp.ClickID]; !exists {
		m.Impressions[imp.ClickID] = imp
	}
	return nil
}

func (m *MemoryStore) GetImpression(ctx context.Context, clickID string) (*models.Impression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if imp, ok := m.Impressions[clickID]; ok {
		cp := imp
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) InsertClick(ctx context.Context, c models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.Clicks[c.ClickID]; !exists {
		m.Clicks[c.ClickID] = c
	}
	return nil
}

func (m *MemoryStore) ClickExists(ctx context.Context, clickID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.Clicks[clickID]
	return ok, nil
}

func (m *MemoryStore) InsertConversion(ctx context.Context, c models.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.Conversions[c.ClickID]; !exists {
		m.Conversions[c.ClickID] = c
	}
	return nil
}
