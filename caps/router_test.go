package caps

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUnknownCapability404s(t *testing.T) {
	rt := NewRouter()
	req := httptest.NewRequest(http.MethodGet, Prefix+"nonexistent", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown capability, got %d", rec.Code)
	}
}

func TestPathOutsidePrefix404s(t *testing.T) {
	rt := NewRouter()
	req := httptest.NewRequest(http.MethodGet, "/elsewhere", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside /CAPS/, got %d", rec.Code)
	}
}

func TestRegisterAndDispatchStripsPrefix(t *testing.T) {
	rt := NewRouter()
	var gotSuffix string
	url, err := rt.Register("ServerReleaseNotes", false, func(w http.ResponseWriter, r *http.Request, suffix string) {
		gotSuffix = suffix
		w.WriteHeader(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !strings.HasPrefix(url, Prefix) {
		t.Fatalf("expected url under %s, got %s", Prefix, url)
	}

	req := httptest.NewRequest(http.MethodGet, url+"/extra/path", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotSuffix != "extra/path" {
		t.Fatalf("expected suffix 'extra/path', got %q", gotSuffix)
	}
}

func TestOneShotCapabilityDeregistersAfterFirstUse(t *testing.T) {
	rt := NewRouter()
	calls := 0
	url, _ := rt.Register("upload", true, func(w http.ResponseWriter, r *http.Request, _ string) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	rec1 := httptest.NewRecorder()
	rt.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, url, nil))
	if rec1.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected first call to succeed, code=%d calls=%d", rec1.Code, calls)
	}

	rec2 := httptest.NewRecorder()
	rt.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, url, nil))
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("expected second call to 404 after one-shot consumption, got %d", rec2.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked exactly once, got %d", calls)
	}
}

func TestDeregisterRemovesCapability(t *testing.T) {
	rt := NewRouter()
	url, _ := rt.Register("EventQueueGet", false, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusOK)
	})
	rt.Deregister("EventQueueGet")

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deregistration, got %d", rec.Code)
	}
	if rt.URLFor("EventQueueGet") != "" {
		t.Fatalf("expected URLFor to return empty after deregistration")
	}
}

func TestTeardownAllClearsEveryCapability(t *testing.T) {
	rt := NewRouter()
	url1, _ := rt.Register("a", false, func(http.ResponseWriter, *http.Request, string) {})
	url2, _ := rt.Register("b", false, func(http.ResponseWriter, *http.Request, string) {})
	rt.TeardownAll()

	for _, url := range []string{url1, url2} {
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s after TeardownAll, got %d", url, rec.Code)
		}
	}
}

func TestUploadCapabilityTwoStageHandshake(t *testing.T) {
	rt := NewRouter()
	var gotPayload []byte
	url, err := RegisterUploadCapability(rt, "UpdateScriptTask", func(payload []byte) UploadResult {
		gotPayload = payload
		return UploadResult{Success: true, ItemID: "item-1"}
	})
	if err != nil {
		t.Fatalf("RegisterUploadCapability: %v", err)
	}

	rec1 := httptest.NewRecorder()
	rt.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, url, nil))
	var stage1 map[string]string
	if err := json.NewDecoder(rec1.Body).Decode(&stage1); err != nil {
		t.Fatalf("decode stage1: %v", err)
	}
	uploaderURL := stage1["uploader"]
	if !strings.HasPrefix(uploaderURL, Prefix) {
		t.Fatalf("expected an uploader url, got %q", uploaderURL)
	}

	rec2 := httptest.NewRecorder()
	rt.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, uploaderURL, bytes.NewReader([]byte("bytecode"))))
	var result UploadResult
	if err := json.NewDecoder(rec2.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.ItemID != "item-1" {
		t.Fatalf("expected successful upload result, got %+v", result)
	}
	if string(gotPayload) != "bytecode" {
		t.Fatalf("expected raw bytes forwarded to the processor, got %q", gotPayload)
	}

	rec3 := httptest.NewRecorder()
	rt.ServeHTTP(rec3, httptest.NewRequest(http.MethodPost, uploaderURL, nil))
	if rec3.Code != http.StatusNotFound {
		t.Fatalf("expected the uploader url to be one-shot, got %d", rec3.Code)
	}
}
