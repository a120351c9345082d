package mcp

import (
	"sync/atomic"
	"time"
)

// Pool hands out tool-backend connections round-robin across the configured
// endpoints. It is owned by the application context and injected where
// needed, so ordering is deterministic under test. Misallocation under
// concurrent acquires only skews load distribution, never correctness.
type Pool struct {
	endpoints []string
	timeout   time.Duration
	next      atomic.Uint64
}

// NewPool creates a pool over the given endpoint URLs.
func NewPool(endpoints []string, timeout time.Duration) *Pool {
	return &Pool{
		endpoints: endpoints,
		timeout:   timeout,
	}
}

// Size returns the number of configured endpoints.
func (p *Pool) Size() int { return len(p.endpoints) }

// Acquire returns a fresh client for the next endpoint in round-robin
// order. The caller owns the client for one run and closes it at run end.
func (p *Pool) Acquire() *Client {
	n := p.next.Add(1) - 1
	endpoint := p.endpoints[int(n%uint64(len(p.endpoints)))]
	return NewClient(endpoint, p.timeout)
}
