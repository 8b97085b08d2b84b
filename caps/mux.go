/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package caps

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Mux fans a single "/CAPS/<segment>/..." listener out across every
// session's own Router: each Session owns its capabilities (spec.md's
// per-session capability table), but the region runs one HTTP listener,
// so something has to find which session's Router a given segment
// belongs to.
type Mux struct {
	mu      sync.RWMutex
	routers map[uuid.UUID]*Router
}

func NewMux() *Mux { return &Mux{routers: make(map[uuid.UUID]*Router)} }

// Attach registers sessionID's Router with the mux; call on session
// creation.
func (m *Mux) Attach(sessionID uuid.UUID, rt *Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routers[sessionID] = rt
}

// Detach removes sessionID's Router; call on session teardown, after
// the Router's own TeardownAll.
func (m *Mux) Detach(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routers, sessionID)
}

// RouterFor returns the Router attached for sessionID, so a capability
// handler that mints further capabilities (e.g. a seed cap handing out
// EventQueueGet) can register them on the right session.
func (m *Mux) RouterFor(sessionID uuid.UUID) (*Router, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.routers[sessionID]
	return rt, ok
}

// ServeHTTP finds the Router whose segment table contains this
// request's capability segment and dispatches to it; a segment no
// session currently owns 404s the same way an unknown segment within a
// single Router would.
func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := segmentOf(r.URL.Path)
	if seg == "" {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	var owner *Router
	for _, rt := range m.routers {
		if rt.Has(seg) {
			owner = rt
			break
		}
	}
	m.mu.RUnlock()

	if owner == nil {
		http.NotFound(w, r)
		return
	}
	owner.ServeHTTP(w, r)
}

func segmentOf(path string) string {
	const prefixLen = len(Prefix)
	if len(path) <= prefixLen || path[:prefixLen] != Prefix {
		return ""
	}
	rest := path[prefixLen:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}
