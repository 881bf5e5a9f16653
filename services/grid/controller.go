package grid

import (
	"sync"

	"github.com/meghashyamc/churnsearch/logger"
)

// Controller serializes actions through Reduce and tells listeners about every
// accepted one.
type Controller struct {
	logger logger.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewController(logger logger.Logger, initial State) *Controller {
	return &Controller{
		logger:    logger,
		state:     initial.clone(),
		listeners: make(map[int]func(State)),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Dispatch applies action. Invalid actions are ignored and reported false.
func (c *Controller) Dispatch(action Action) bool {
	c.mu.Lock()
	next, err := Reduce(c.state, action)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("ignoring grid action", "action", action, "err", err.Error())
		return false
	}
	c.state = next
	listeners := make([]func(State), 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(next.clone())
	}
	return true
}

// Subscribe registers fn for every accepted action until the returned func is called.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners, id)
		})
	}
}
