// Package caps is the capability router: URL-safe opaque strings mapped
// to callbacks, one router instance per session. Grounded on AIStore's
// API-node routing layer, where a request's path is matched against a
// registered handler table rather than a generic mux tree; here the path
// segment itself (not a route pattern) is the lookup key, and the
// handler is de-registered rather than merely unmounted once its
// one-shot use is consumed.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package caps

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rezsim/rez/cmn/cos"
)

// Prefix is the fixed URL prefix every capability is mounted under.
const Prefix = "/CAPS/"

// Handler answers one capability request; suffix is whatever followed
// the capability segment in the URL path (e.g. an uploader sub-path).
type Handler func(w http.ResponseWriter, r *http.Request, suffix string)

// Router owns one session's name->capability and segment->handler maps.
type Router struct {
	mu       sync.RWMutex
	byName   map[string]string  // well-known name -> segment
	handlers map[string]Handler // segment -> handler
	oneShot  map[string]bool
}

func NewRouter() *Router {
	return &Router{
		byName:   make(map[string]string),
		handlers: make(map[string]Handler),
		oneShot:  make(map[string]bool),
	}
}

// Register mints a new unguessable segment for name, bound to h, and
// returns the full capability URL path. oneShot handlers de-register
// themselves the first time ServeHTTP dispatches to them (e.g. an upload
// endpoint consumed exactly once).
func (rt *Router) Register(name string, oneShot bool, h Handler) (string, error) {
	seg, err := cos.NewCapabilitySegment()
	if err != nil {
		return "", err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.byName[name] = seg
	rt.handlers[seg] = h
	rt.oneShot[seg] = oneShot
	return Prefix + seg, nil
}

// Deregister removes name's capability; safe to call twice.
func (rt *Router) Deregister(name string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	seg, ok := rt.byName[name]
	if !ok {
		return
	}
	delete(rt.byName, name)
	delete(rt.handlers, seg)
	delete(rt.oneShot, seg)
}

// TeardownAll de-registers every capability, called when the owning
// session is torn down.
func (rt *Router) TeardownAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.byName = make(map[string]string)
	rt.handlers = make(map[string]Handler)
	rt.oneShot = make(map[string]bool)
}

// URLFor returns the currently registered path for a well-known
// capability name, or "" if it has no active registration.
func (rt *Router) URLFor(name string) string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	seg, ok := rt.byName[name]
	if !ok {
		return ""
	}
	return Prefix + seg
}

// Has reports whether seg currently names a registered capability on
// this router, used by a multi-session dispatcher to find which
// session's Router owns an incoming capability path.
func (rt *Router) Has(seg string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.handlers[seg]
	return ok
}

// ServeHTTP dispatches any URL matching Prefix + "<segment>[/...]" by
// stripping the prefix and looking up the capability; unmatched paths
// and unknown segments 404.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, Prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, Prefix)
	seg, suffix, _ := strings.Cut(rest, "/")

	rt.mu.RLock()
	h, ok := rt.handlers[seg]
	oneShot := rt.oneShot[seg]
	rt.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if oneShot {
		rt.mu.Lock()
		delete(rt.handlers, seg)
		delete(rt.oneShot, seg)
		for name, s := range rt.byName {
			if s == seg {
				delete(rt.byName, name)
			}
		}
		rt.mu.Unlock()
	}

	h(w, r, suffix)
}
