package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry implements MetricsRegistry and records counts for test
// assertions.
type MockMetricsRegistry struct {
	mu sync.Mutex

	Requests       map[string]int // endpoint|method|status
	Decisions      map[string]int
	NoFills        int
	Events         map[string]int
	FraudVerdicts  map[string]int
	RecordFailures map[string]int
	RotationBatch  int
	BatchSizes     []int
	SettingsLoads  int
}

// NewMockMetricsRegistry creates an empty mock registry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Requests:       make(map[string]int),
		Decisions:      make(map[string]int),
		Events:         make(map[string]int),
		FraudVerdicts:  make(map[string]int),
		RecordFailures: make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint+"|"+method+"|"+status]++
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementDecisions(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions[outcome]++
}

func (m *MockMetricsRegistry) IncrementNoFills() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NoFills++
}

func (m *MockMetricsRegistry) IncrementEvent(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[eventType]++
}

func (m *MockMetricsRegistry) IncrementFraudVerdict(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason == "" {
		reason = "allowed"
	}
	m.FraudVerdicts[reason]++
}

func (m *MockMetricsRegistry) IncrementRecordFailures(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordFailures[eventType]++
}

func (m *MockMetricsRegistry) IncrementRotationBatches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RotationBatch++
}

func (m *MockMetricsRegistry) ObserveRotationBatchSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchSizes = append(m.BatchSizes, size)
}

func (m *MockMetricsRegistry) IncrementSettingsReloads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettingsLoads++
}
