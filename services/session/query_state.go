package session

import (
	"sync"
	"time"
)

// TimeRange bounds the configured time field. Zero ends are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Query is what the user searches for: a query string, structured filters
// and an optional time range.
type Query struct {
	QueryString string
	Filters     []map[string]any
	TimeRange   *TimeRange
}

// QueryState is the shared, long-lived query/filter/time state. Consumers
// subscribe and must call the returned func to stop listening.
type QueryState struct {
	mu        sync.Mutex
	query     Query
	listeners map[int]func(Query)
	nextID    int
}

func NewQueryState(initial Query) *QueryState {
	return &QueryState{query: initial, listeners: make(map[int]func(Query))}
}

func (q *QueryState) Get() Query {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.query
}

func (q *QueryState) Set(query Query) {
	q.mu.Lock()
	q.query = query
	listeners := make([]func(Query), 0, len(q.listeners))
	for _, listener := range q.listeners {
		listeners = append(listeners, listener)
	}
	q.mu.Unlock()

	for _, listener := range listeners {
		listener(query)
	}
}

// Subscribe calls fn with the current query and every later one.
func (q *QueryState) Subscribe(fn func(Query)) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	current := q.query
	q.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.listeners, id)
		})
	}
}

// Listeners reports how many subscriptions are live.
func (q *QueryState) Listeners() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.listeners)
}
