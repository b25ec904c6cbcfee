package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*StatusChangeEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*StatusChangeEvent, 0),
	}
}

// SetPublishError makes every subsequent publish fail with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// PublishStatusChange records the event and returns any configured error.
func (m *MockPublisher) PublishStatusChange(ctx context.Context, event *StatusChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishStatusChanges records the events and returns any configured error.
func (m *MockPublisher) PublishStatusChanges(ctx context.Context, events []*StatusChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, events...)
	return nil
}

// Events returns a copy of every event published so far.
func (m *MockPublisher) Events() []*StatusChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*StatusChangeEvent, len(m.publishedEvents))
	copy(out, m.publishedEvents)
	return out
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
