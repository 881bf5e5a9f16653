package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

const DefaultStrategy = "es"

var (
	ErrUnknownStrategy    = errors.New("unknown search strategy")
	ErrStrategyRegistered = errors.New("search strategy already registered")
)

// Searcher executes a request and streams snapshots on the returned channel.
// The channel is closed by the producer once it stops; cancelling ctx unsubscribes.
type Searcher interface {
	Search(ctx context.Context, request *Request, options Options) (<-chan *Response, error)
}

// Canceller releases the server side resources of a search.
type Canceller interface {
	Cancel(ctx context.Context, id string) error
}

type Strategy interface {
	Searcher
	Canceller
}

type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Searcher
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Searcher)}
}

func (r *Registry) Register(name string, searcher Searcher) error {
	if name == "" || searcher == nil {
		return fmt.Errorf("invalid search strategy registration %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("%w: %s", ErrStrategyRegistered, name)
	}
	r.strategies[name] = searcher
	return nil
}

// Get returns the named strategy, the default one when name is empty.
func (r *Registry) Get(name string) (Searcher, error) {
	if name == "" {
		name = DefaultStrategy
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	searcher, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return searcher, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
