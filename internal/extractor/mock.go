package extractor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockExtractor is a PageExtractor for testing.
type MockExtractor struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Result     *Extraction

	// State
	requestCount atomic.Int64
}

// NewMockExtractor creates a new mock extractor with sensible defaults.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		Latency: 10 * time.Millisecond,
		Result: &Extraction{
			Found:  true,
			Recipe: &RecipeData{Title: "Mock Recipe"},
		},
	}
}

var _ PageExtractor = (*MockExtractor)(nil)

// Name returns the extractor identifier.
func (m *MockExtractor) Name() string {
	return MockName
}

// RequestCount returns how many extractions have been attempted.
func (m *MockExtractor) RequestCount() int64 {
	return m.requestCount.Load()
}

// ExtractFromImage returns the configured result after the configured latency.
func (m *MockExtractor) ExtractFromImage(ctx context.Context, image []byte, hints Hints) (*Extraction, error) {
	count := m.requestCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.ShouldFail {
		return nil, fmt.Errorf("mock extractor: simulated failure")
	}
	if m.FailAfter > 0 && count > int64(m.FailAfter) {
		return nil, fmt.Errorf("mock extractor: simulated failure after %d requests", m.FailAfter)
	}

	if m.Result == nil {
		return &Extraction{Found: false}, nil
	}
	out := *m.Result
	return &out, nil
}
