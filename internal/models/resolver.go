package models

import (
	"context"
	"sync"

	"github.com/docweave/docweave/internal/invoker"
)

// Resolver routes calls to per-service provider clients, building them
// lazily from config. It implements invoker.Caller.
type Resolver struct {
	mu      sync.Mutex
	cfg     *Config
	clients map[string]*Client
}

// NewResolver creates a resolver over the provider config.
func NewResolver(cfg *Config) *Resolver {
	return &Resolver{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Call executes a completion against the named service, falling back to the
// default provider settings when the service has no explicit entry.
func (r *Resolver) Call(ctx context.Context, service string, req invoker.CallRequest) (*invoker.CallResponse, error) {
	return r.client(service).Complete(ctx, req)
}

func (r *Resolver) client(service string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[service]; ok {
		return c
	}

	svcCfg := r.cfg.Default
	if cfg, ok := r.cfg.Services[service]; ok {
		svcCfg = cfg
	}

	c := NewClient(&svcCfg)
	r.clients[service] = c
	return c
}
