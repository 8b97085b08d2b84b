package httpd

import (
	"net/http"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/rezsim/rez/caps"
	"github.com/rezsim/rez/fed"
)

func TestDispatchRoutesCapsPrefixToCapsHandler(t *testing.T) {
	router := caps.NewRouter()
	segment, err := router.Register("EventQueueGet", false, func(w http.ResponseWriter, r *http.Request, suffix string) {
		w.Write([]byte("caps-hit"))
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	s := NewServer(Config{Addr: ":0"}, router, &fed.Surface{})

	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.SetRequestURI(segment)
	req.Header.SetMethod("GET")
	ctx.Init(&req, nil, nil)

	s.dispatch(&ctx)

	if got := string(ctx.Response.Body()); got != "caps-hit" {
		t.Fatalf("body = %q, want %q", got, "caps-hit")
	}
}

func TestDispatchRoutesOtherPathsToFedHandler(t *testing.T) {
	s := NewServer(Config{Addr: ":0"}, caps.NewRouter(), &fed.Surface{})

	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.SetRequestURI("/nonsense")
	req.Header.SetMethod("GET")
	ctx.Init(&req, nil, nil)

	s.dispatch(&ctx)

	if ctx.Response.StatusCode() != 404 {
		t.Fatalf("status = %d, want 404 from the federation surface's catch-all", ctx.Response.StatusCode())
	}
}
