package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler keeps account schedules in memory. Tests use it in place of
// *Client.
type MockScheduler struct {
	mu        sync.Mutex
	intervals map[string]time.Duration // keyed by scheduleID
	upsertErr error
	deleteErr error
}

func NewMockScheduler() *MockScheduler {
	return &MockScheduler{intervals: map[string]time.Duration{}}
}

func (m *MockScheduler) UpsertAccountSchedule(_ context.Context, account string, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.intervals[scheduleID(account)] = interval
	return nil
}

func (m *MockScheduler) DeleteAccountSchedule(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	id := scheduleID(account)
	if _, ok := m.intervals[id]; !ok {
		return fmt.Errorf("no schedule %q", id)
	}
	delete(m.intervals, id)
	return nil
}

// SetCreateError makes every following upsert fail with err.
func (m *MockScheduler) SetCreateError(err error) {
	m.mu.Lock()
	m.upsertErr = err
	m.mu.Unlock()
}

// SetDeleteError makes every following delete fail with err.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	m.deleteErr = err
	m.mu.Unlock()
}

func (m *MockScheduler) ScheduleExists(account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.intervals[scheduleID(account)]
	return ok
}

// GetScheduleInterval returns the sync interval of an account, or zero when
// the account has no schedule.
func (m *MockScheduler) GetScheduleInterval(account string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intervals[scheduleID(account)]
}

func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intervals)
}
