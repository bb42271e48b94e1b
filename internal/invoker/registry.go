package invoker

import (
	"sort"
	"sync"
)

// Registry holds one breaker per external service for the whole process.
// It is created once at startup and shared by every worker; breakers persist
// until an explicit administrative Reset.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewRegistry creates an empty registry that builds breakers with cfg.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
	}
}

// Breaker returns the breaker for the named service, creating it on first use.
func (r *Registry) Breaker(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[service]
	if !ok {
		b = NewBreaker(service, r.cfg)
		r.breakers[service] = b
	}
	return b
}

// Statuses returns a snapshot of every known breaker, sorted by service name.
func (r *Registry) Statuses() []BreakerStatus {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	statuses := make([]BreakerStatus, 0, len(breakers))
	for _, b := range breakers {
		statuses = append(statuses, b.Status())
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Service < statuses[j].Service
	})

	return statuses
}

// Reset closes the breaker for the named service. Reports whether the
// service had a breaker.
func (r *Registry) Reset(service string) bool {
	r.mu.Lock()
	b, ok := r.breakers[service]
	r.mu.Unlock()

	if !ok {
		return false
	}

	b.Reset()
	return true
}
