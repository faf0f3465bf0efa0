package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// MockSettingsRepository is a hand-written, in-memory SettingsRepository
// used in unit tests.
type MockSettingsRepository struct {
	mu      sync.Mutex
	values  map[string]json.RawMessage
	history map[string][]json.RawMessage

	// Optional error overrides, set in tests to simulate failure paths.
	GetErr  error
	PutErr  error
	SwapErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		values:  make(map[string]json.RawMessage),
		history: make(map[string][]json.RawMessage),
	}
}

func (m *MockSettingsRepository) Get(_ context.Context, name string) (json.RawMessage, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append(json.RawMessage(nil), v...), nil
}

func (m *MockSettingsRepository) Put(_ context.Context, name string, value any) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(name, b)
	return nil
}

func (m *MockSettingsRepository) SwapIf(_ context.Context, name string, expected, value any) (bool, error) {
	if m.SwapErr != nil {
		return false, m.SwapErr
	}
	want, err := json.Marshal(expected)
	if err != nil {
		return false, err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.values[name]; ok && !bytes.Equal(cur, want) {
		return false, nil
	}
	m.set(name, b)
	return true, nil
}

// History returns every value written to name, oldest first.
func (m *MockSettingsRepository) History(name string) []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]json.RawMessage(nil), m.history[name]...)
}

func (m *MockSettingsRepository) set(name string, b json.RawMessage) {
	m.values[name] = b
	m.history[name] = append(m.history[name], b)
}

// MockSubscriberRepository serves an in-memory directory with the same
// keyset pagination as the PostgreSQL implementation.
type MockSubscriberRepository struct {
	mu          sync.Mutex
	subscribers []domain.Subscriber

	// ScanErr is returned from the call numbered FailOnScan (1-based);
	// zero fails every call.
	ScanErr    error
	FailOnScan int
	Scans      int
	// Tokens records the continuation token passed to each call.
	Tokens []string
}

func NewMockSubscriberRepository(subscribers ...domain.Subscriber) *MockSubscriberRepository {
	m := &MockSubscriberRepository{}
	m.Add(subscribers...)
	return m
}

func (m *MockSubscriberRepository) Add(subscribers ...domain.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, subscribers...)
	sort.Slice(m.subscribers, func(i, j int) bool {
		return m.subscribers[i].SubscriberID < m.subscribers[j].SubscriberID
	})
}

func (m *MockSubscriberRepository) Scan(_ context.Context, f domain.SubscriberFilter, token string, limit int) (domain.SubscriberPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scans++
	m.Tokens = append(m.Tokens, token)
	if m.ScanErr != nil && (m.FailOnScan == 0 || m.FailOnScan == m.Scans) {
		return domain.SubscriberPage{}, m.ScanErr
	}

	var page domain.SubscriberPage
	for _, s := range m.subscribers {
		if token != "" && s.SubscriberID <= token {
			continue
		}
		if !f.Match(s) {
			continue
		}
		page.Items = append(page.Items, s)
		if limit > 0 && len(page.Items) == limit {
			page.NextToken = s.SubscriberID
			break
		}
	}
	return page, nil
}

// MockQueueRepository records every batch it is asked to write.
// WriteFunc, when set, decides the outcome of each call.
type MockQueueRepository struct {
	mu      sync.Mutex
	items   []*domain.QueueItem
	Batches [][]*domain.QueueItem

	WriteFunc func(call int, items []*domain.QueueItem) (domain.BatchWriteResult, error)
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{}
}

func (m *MockQueueRepository) BatchWrite(_ context.Context, items []*domain.QueueItem) (domain.BatchWriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := append([]*domain.QueueItem(nil), items...)
	m.Batches = append(m.Batches, batch)

	res := domain.BatchWriteResult{Written: len(items)}
	if m.WriteFunc != nil {
		var err error
		res, err = m.WriteFunc(len(m.Batches), batch)
		if err != nil {
			return domain.BatchWriteResult{}, err
		}
	}

	skip := make(map[*domain.QueueItem]bool, len(res.Unprocessed))
	for _, it := range res.Unprocessed {
		skip[it] = true
	}
	for _, it := range batch {
		if !skip[it] {
			m.items = append(m.items, it)
		}
	}
	return res, nil
}

// Items returns every item written so far.
func (m *MockQueueRepository) Items() []*domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.QueueItem(nil), m.items...)
}

// ErrMockUnavailable is a convenience error for failure-path tests.
var ErrMockUnavailable = errors.New("mock store unavailable")
