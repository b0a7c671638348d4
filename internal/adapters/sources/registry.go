package sources

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrUnknownSource is returned for names without a registered collector.
var ErrUnknownSource = eris.New("unknown source")

// Registry maps source names to collectors.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

// NewRegistry returns a registry holding cs.
func NewRegistry(cs ...Collector) *Registry {
	r := &Registry{collectors: make(map[string]Collector, len(cs))}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a collector.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[c.Name()] = c
}

// Get returns the collector for name.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// Names returns registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.collectors))
	for n := range r.collectors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Ordered returns collectors for names in the given order.
func (r *Registry) Ordered(names []string) ([]Collector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collector, 0, len(names))
	for _, n := range names {
		c, ok := r.collectors[n]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownSource, "%q", n)
		}
		out = append(out, c)
	}
	return out, nil
}
