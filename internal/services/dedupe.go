package services

import "sync"

// DedupeGuard is a process-local set of order ids already successfully
// processed. Its only job is to short-circuit redundant work (artifact
// generation, upload) within one process lifetime: a restart clears it, and
// the provider-side idempotent upsert remains the source of correctness.
type DedupeGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupeGuard constructs an empty guard.
func NewDedupeGuard() *DedupeGuard {
	return &DedupeGuard{seen: make(map[string]struct{})}
}

// ShouldProcess reports whether the order has not been processed yet.
func (g *DedupeGuard) ShouldProcess(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[orderID]
	return !ok
}

// MarkProcessed records the order id. Called only after a confirmed
// submission success or an explicit skip, never on failure.
func (g *DedupeGuard) MarkProcessed(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[orderID] = struct{}{}
}
