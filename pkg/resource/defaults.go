package resource

import (
	"maps"
	"net/http"
	"sync"
)

// HeaderStore is a mutable set of default request headers. Every resolution
// reads the store's content at call time, so updates apply to subsequent calls
// only and are visible to every resource sharing the store. Keys are held in
// canonical MIME header form.
type HeaderStore struct {
	mu      sync.RWMutex
	headers map[string]string
}

// NewHeaderStore creates a store holding a copy of headers.
func NewHeaderStore(headers map[string]string) *HeaderStore {
	return &HeaderStore{headers: canonicalHeaders(headers)}
}

// canonicalHeaders copies headers with every key in canonical form, so that
// keys differing only in case collapse into one.
func canonicalHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// DefaultHeaders is the process-wide header store consulted by every resource
// that was not given its own store.
var DefaultHeaders = NewHeaderStore(map[string]string{
	"Accept":       "application/json",
	"Content-Type": "application/json",
})

// Set sets a default header.
func (s *HeaderStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		s.headers = make(map[string]string)
	}
	s.headers[http.CanonicalHeaderKey(key)] = value
}

// Delete removes a default header.
func (s *HeaderStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.headers, http.CanonicalHeaderKey(key))
}

// Replace swaps the whole header set.
func (s *HeaderStore) Replace(headers map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = canonicalHeaders(headers)
}

// Get returns a default header.
func (s *HeaderStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.headers[http.CanonicalHeaderKey(key)]
	return v, ok
}

// Snapshot returns a copy of the current headers.
func (s *HeaderStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.headers))
	maps.Copy(out, s.headers)
	return out
}

// defaultActions are the built-in declarations for the conventional action IDs.
var defaultActions = map[string]Options{
	"create": {Method: Literal(http.MethodPost)},
	"fetch":  {Method: Literal(http.MethodGet), IsArray: Literal(true)},
	"get":    {Method: Literal(http.MethodGet)},
	"update": {Method: Literal(http.MethodPatch)},
	"delete": {Method: Literal(http.MethodDelete)},
}

// globalDefaults is the lowest layer for every action.
var globalDefaults = Options{
	Method:         Literal(http.MethodGet),
	IsArray:        Literal(false),
	AssignResponse: Literal(false),
}
