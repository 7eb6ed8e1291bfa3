package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/healthprobe/health"
)

// memStore is a concurrency-safe in-memory StoreClient.
type memStore struct {
	mu         sync.Mutex
	docs       map[string]health.Document
	connectErr error

	// gate, when set, blocks Connect until closed and signals entered first.
	gate    chan struct{}
	entered chan struct{}
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]health.Document)}
}

func (m *memStore) Connect(ctx context.Context) error {
	if m.gate != nil {
		m.entered <- struct{}{}
		<-m.gate
	}
	return m.connectErr
}

func (m *memStore) Insert(ctx context.Context, doc health.Document) (string, error) {
	id := fmt.Sprint(doc[health.MarkerIDField])
	m.mu.Lock()
	m.docs[id] = doc
	m.mu.Unlock()
	return id, nil
}

func (m *memStore) Query(ctx context.Context, filter health.Filter) ([]health.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[fmt.Sprint(filter[health.MarkerIDField])]; ok {
		return []health.Document{doc}, nil
	}
	return nil, nil
}

func (m *memStore) Delete(ctx context.Context, filter health.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprint(filter[health.MarkerIDField])
	if _, ok := m.docs[id]; !ok {
		return 0, nil
	}
	delete(m.docs, id)
	return 1, nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }

// countingFactory hands out store for every call and counts them.
func countingFactory(store health.StoreClient, calls *atomic.Int32) health.StoreFactory {
	return func() health.StoreClient {
		calls.Add(1)
		return store
	}
}
