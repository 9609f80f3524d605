package analytics

import (
	"context"
	"sync"
)

// MockService implements Service and records events in memory for tests.
type MockService struct {
	mu     sync.Mutex
	Events []Event
	// Err, when set, is returned from every RecordEvent call to exercise
	// best-effort failure handling.
	Err error
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{}
}

// RecordEvent appends the event, or fails with the configured error.
func (m *MockService) RecordEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, ev)
	return nil
}

// GetEventsByClickID returns the recorded events for a click id.
func (m *MockService) GetEventsByClickID(ctx context.Context, id string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []Event
	for _, ev := range m.Events {
		if ev.ClickID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

// EventsOfType returns the recorded events with the given type.
func (m *MockService) EventsOfType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.Events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}
