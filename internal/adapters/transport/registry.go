package transport

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/okian/lwwboard/pkg/metrics"
)

// Registry tracks live sessions by remote key. It is used for admission
// control, the connected client count and shutdown; never for pushing data.
type Registry struct {
	mu      sync.Mutex
	entries map[string]io.Closer
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]io.Closer)}
}

// Admit registers c under key. With limit > 0 a registry already holding
// limit entries refuses with ErrAtCapacity.
func (r *Registry) Admit(key string, c io.Closer, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrRegistryClosed
	case limit > 0 && len(r.entries) >= limit:
		return ErrAtCapacity
	}
	if _, ok := r.entries[key]; ok {
		return ErrDuplicateSession
	}
	r.entries[key] = c
	metrics.UpdateSessionsActive(len(r.entries))
	return nil
}

// Remove drops key. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return
	}
	delete(r.entries, key)
	metrics.UpdateSessionsActive(len(r.entries))
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloseAll refuses further admissions and closes every registered session.
// Entries are removed by their sessions as they exit.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	r.closed = true
	closers := make([]io.Closer, 0, len(r.entries))
	for _, c := range r.entries {
		closers = append(closers, c)
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
