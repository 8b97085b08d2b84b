package session

import "sync"

// SelfPtr is a pointer-to-pointer slot registered by a long-running
// operation that may outlive the session (a grid HTTP callback, a script
// RPC, a teleport descriptor). On session teardown every slot is nulled;
// callers must check Get for nil before dereferencing whatever it points
// at.
type SelfPtr struct {
	mu  sync.RWMutex
	val any
}

// Get returns the current value, or nil if the slot has been nulled.
func (p *SelfPtr) Get() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.val
}

func (p *SelfPtr) set(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.val = v
}

// RegisterSelfPtr creates a named self-pointer slot holding v and tracks
// it for nulling on teardown. A second registration under the same name
// replaces the first.
func (s *Session) RegisterSelfPtr(name string, v any) *SelfPtr {
	p := &SelfPtr{val: v}
	s.selfPtrs[name] = p
	return p
}

// ReleaseSelfPtr nulls and forgets a named slot; used when the
// long-running operation completes normally (e.g. a teleport descriptor
// finishing) rather than via session teardown.
func (s *Session) ReleaseSelfPtr(name string) {
	if p, ok := s.selfPtrs[name]; ok {
		p.set(nil)
		delete(s.selfPtrs, name)
	}
}

// Teardown nulls every outstanding self-pointer slot; called once when
// the session is finally removed (after any slow-removal grace window).
func (s *Session) Teardown() {
	for name, p := range s.selfPtrs {
		p.set(nil)
		delete(s.selfPtrs, name)
	}
}
