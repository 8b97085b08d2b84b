// Package httpd is the region's outward-facing HTTP listener: the
// capability surface (`/CAPS/<cap>/...`) and the grid federation surface
// (`POST /`, `/agent/<uuid>/...`) mounted behind one `fasthttp.Server`.
// Grounded on AIStore's `ais/prxs3.go`-style proxy handler, which mounts
// several logical sub-handlers behind one listener and dispatches on
// path prefix.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package httpd

import (
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/rezsim/rez/caps"
	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/fed"
)

// Config controls the listener and the two mounted surfaces.
type Config struct {
	Addr          string
	CapsPrefix    string // defaults to caps.Prefix ("/CAPS/")
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Server owns the region's single fasthttp listener, mounting the
// capability surface at CapsPrefix and the federation surface at every
// other path.
type Server struct {
	cfg  Config
	caps http.Handler
	fed  *fed.Surface

	capsHandler fasthttp.RequestHandler
	fedHandler  fasthttp.RequestHandler

	srv *fasthttp.Server
}

// NewServer wires the two net/http-shaped handlers behind
// fasthttpadaptor, so fasthttp owns the actual socket and request
// parsing while the handler logic stays unit-testable with httptest.
// capsSurface is usually a *caps.Router (single-session tests) or a
// *caps.Mux (a running region, fanning out across every session's own
// Router) — both implement http.Handler.
func NewServer(cfg Config, capsSurface http.Handler, surface *fed.Surface) *Server {
	if cfg.CapsPrefix == "" {
		cfg.CapsPrefix = caps.Prefix
	}
	s := &Server{
		cfg:  cfg,
		caps: capsSurface,
		fed:  surface,
	}
	s.capsHandler = fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(capsSurface.ServeHTTP))
	s.fedHandler = fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(surface.ServeHTTP))
	s.srv = &fasthttp.Server{
		Handler:      s.dispatch,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) dispatch(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if strings.HasPrefix(path, s.cfg.CapsPrefix) {
		s.capsHandler(ctx)
		return
	}
	s.fedHandler(ctx)
}

// ListenAndServe blocks serving the region's HTTP surface until the
// listener fails or is closed.
func (s *Server) ListenAndServe() error {
	nlog.Infof("httpd: listening on %s", s.cfg.Addr)
	return s.srv.ListenAndServe(s.cfg.Addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}
