package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory StoreClient that records calls.
type fakeStore struct {
	mu sync.Mutex

	connectErr error
	insertErr  error
	queryErr   error
	deleteErr  error
	closeErr   error

	// insertID overrides the returned id when non-nil.
	insertID *string
	// queryDocs overrides query results when non-nil.
	queryDocs []Document
	// panicOn names an operation that panics.
	panicOn string
	// onInsert runs inside Insert before it returns.
	onInsert func(ctx context.Context)
	// onQuery runs inside Query before it returns.
	onQuery func(ctx context.Context)
	// hang names operations that block until their context ends.
	hang map[string]bool
	// stall names operations that sleep, ignoring their context, and then
	// proceed normally.
	stall map[string]time.Duration

	docs  map[string]Document
	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]Document)}
}

func (f *fakeStore) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.panicOn == op {
		panic(op + " exploded")
	}
}

// wait applies hang and stall to op.
func (f *fakeStore) wait(ctx context.Context, op string) error {
	if f.hang[op] {
		<-ctx.Done()
		return ctx.Err()
	}
	if d := f.stall[op]; d > 0 {
		time.Sleep(d)
	}
	return nil
}

func (f *fakeStore) Connect(ctx context.Context) error {
	f.record("connect")
	if err := f.wait(ctx, "connect"); err != nil {
		return err
	}
	return f.connectErr
}

func (f *fakeStore) Insert(ctx context.Context, doc Document) (string, error) {
	f.record("insert")
	if err := f.wait(ctx, "insert"); err != nil {
		return "", err
	}
	if f.onInsert != nil {
		f.onInsert(ctx)
	}
	if f.insertErr != nil {
		return "", f.insertErr
	}
	id := fmt.Sprint(doc[MarkerIDField])
	f.mu.Lock()
	f.docs[id] = doc
	f.mu.Unlock()
	if f.insertID != nil {
		return *f.insertID, nil
	}
	return id, nil
}

func (f *fakeStore) Query(ctx context.Context, filter Filter) ([]Document, error) {
	f.record("query")
	if err := f.wait(ctx, "query"); err != nil {
		return nil, err
	}
	if f.onQuery != nil {
		f.onQuery(ctx)
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryDocs != nil {
		return f.queryDocs, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Document
	for id, doc := range f.docs {
		if id == fmt.Sprint(filter[MarkerIDField]) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, filter Filter) (int64, error) {
	f.record("delete")
	if err := f.wait(ctx, "delete"); err != nil {
		return 0, err
	}
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprint(filter[MarkerIDField])
	if _, ok := f.docs[id]; !ok {
		return 0, nil
	}
	delete(f.docs, id)
	return 1, nil
}

func (f *fakeStore) Close(ctx context.Context) error {
	f.record("close")
	if err := f.wait(ctx, "close"); err != nil {
		return err
	}
	return f.closeErr
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

// plainStore hides fakeStore's Delete so it is not a Deleter.
type plainStore struct {
	f *fakeStore
}

func (p plainStore) Connect(ctx context.Context) error { return p.f.Connect(ctx) }
func (p plainStore) Insert(ctx context.Context, doc Document) (string, error) {
	return p.f.Insert(ctx, doc)
}
func (p plainStore) Query(ctx context.Context, filter Filter) ([]Document, error) {
	return p.f.Query(ctx, filter)
}
func (p plainStore) Close(ctx context.Context) error { return p.f.Close(ctx) }

// staticSource is a MetricsSource returning a fixed sample.
type staticSource struct {
	mu     sync.Mutex
	sample MetricSample
	err    error
	panics bool
	calls  int
	window time.Duration
}

func (s *staticSource) Sample(ctx context.Context, window time.Duration) (MetricSample, error) {
	s.mu.Lock()
	s.calls++
	s.window = window
	s.mu.Unlock()
	if s.panics {
		panic("sensor exploded")
	}
	if s.err != nil {
		return MetricSample{}, s.err
	}
	return s.sample, nil
}
