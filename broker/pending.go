package broker

import "sync"

// pendingCalls is the table of outstanding RPC calls, keyed by correlation
// id. A reply resolves its entry at most once: resolve removes the entry
// under the lock before delivering, so a racing timeout or a duplicate
// reply finds nothing to resolve.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]chan Reply
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]chan Reply)}
}

// add registers a call and returns the channel its reply will arrive on.
// The channel is buffered so the resolver never blocks on an abandoned call.
func (p *pendingCalls) add(correlationID string) <-chan Reply {
	ch := make(chan Reply, 1)
	p.mu.Lock()
	p.calls[correlationID] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers a reply to the matching call. It reports false when the
// correlation id matches no outstanding entry: a stale reply from an
// already timed-out call, or cross-talk that must be dropped.
func (p *pendingCalls) resolve(correlationID string, r Reply) bool {
	p.mu.Lock()
	ch, ok := p.calls[correlationID]
	if ok {
		delete(p.calls, correlationID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- r
	return true
}

// drop abandons a call, typically on timeout. A reply arriving afterwards
// is ignored by resolve.
func (p *pendingCalls) drop(correlationID string) {
	p.mu.Lock()
	delete(p.calls, correlationID)
	p.mu.Unlock()
}

func (p *pendingCalls) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
