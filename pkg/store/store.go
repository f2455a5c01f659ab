// Package store provides a minimal host store for resource actions: reducers
// applied under a mutex in dispatch order, thunk execution and subscriptions.
package store

import (
	"fmt"
	"maps"
	"sync"

	"github.com/go-logr/logr"
)

// ActionInit is dispatched once by New to let reducers build their initial state.
const ActionInit = "@@store/INIT"

// Reducer folds an action into state. It must not mutate its input.
type Reducer func(state any, action any) any

// Thunk is deferred work the store runs with its own accessors instead of
// reducing it.
type Thunk interface {
	Run(dispatch func(action any) any, getState func() any) any
}

// Listener is notified after each applied action with the resulting state.
type Listener func(state any, action any)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log logr.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Store holds the state of an application and applies dispatched actions.
type Store struct {
	mu        sync.Mutex
	reducer   Reducer
	state     any
	listeners map[uint64]Listener
	nextID    uint64

	log logr.Logger
}

// New creates a store and reduces ActionInit over initial.
func New(reducer Reducer, initial any, opts ...Option) *Store {
	s := &Store{
		reducer:   reducer,
		listeners: make(map[uint64]Listener),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = reducer(initial, ActionInit)
	return s
}

// Dispatch applies action and returns it. Thunks are run outside the store
// lock and their return value is returned instead. Listeners are called after
// the lock is released, so they may dispatch themselves.
func (s *Store) Dispatch(action any) any {
	if action == nil {
		s.log.Info("Ignoring nil action")
		return nil
	}
	if thunk, ok := action.(Thunk); ok {
		return thunk.Run(s.Dispatch, s.GetState)
	}

	s.mu.Lock()
	next := s.reducer(s.state, action)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.log.V(2).Info("Applied action", "action", fmt.Sprintf("%T", action))
	for _, l := range listeners {
		l(next, action)
	}
	return action
}

// GetState returns the current state.
func (s *Store) GetState() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// CombineReducers returns a reducer whose state is a map holding the state of
// each reducer under its key. A state that is not such a map is treated as empty.
func CombineReducers(reducers map[string]Reducer) Reducer {
	reducers = maps.Clone(reducers)
	return func(state any, action any) any {
		prev, _ := state.(map[string]any)
		next := make(map[string]any, len(reducers))
		for key, reducer := range reducers {
			next[key] = reducer(prev[key], action)
		}
		return next
	}
}

// Select returns the state kept under key by a combined reducer.
func Select(state any, key string) (any, bool) {
	m, ok := state.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}
