package inventory

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
)

type stubBackend struct {
	mu       sync.Mutex
	fetched  map[uuid.UUID]int
	onFetch  func(id uuid.UUID, done func(payload []byte, status apc.AssetStatus))
}

func (b *stubBackend) Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus)) {
	b.mu.Lock()
	b.fetched[id]++
	b.mu.Unlock()
	b.onFetch(id, done)
}

func (b *stubBackend) Put(payload []byte, done func(finalID uuid.UUID, err error)) {
	done(uuid.New(), nil)
}

func newStub(onFetch func(uuid.UUID, func([]byte, apc.AssetStatus))) *stubBackend {
	return &stubBackend{fetched: make(map[uuid.UUID]int), onFetch: onFetch}
}

func TestGetAssetFetchesOnceOnColdMiss(t *testing.T) {
	id := uuid.New()
	backend := newStub(func(i uuid.UUID, done func([]byte, apc.AssetStatus)) {
		done([]byte("payload"), apc.AssetReady)
	})
	cache, err := NewAssetCache(":memory:", backend)
	if err != nil {
		t.Fatalf("NewAssetCache: %v", err)
	}
	defer cache.Close()

	var got1, got2 []byte
	cache.GetAsset(id, func(payload []byte, status apc.AssetStatus) { got1 = payload })
	cache.GetAsset(id, func(payload []byte, status apc.AssetStatus) { got2 = payload })

	if string(got1) != "payload" || string(got2) != "payload" {
		t.Fatalf("expected both callers to see the payload, got %q %q", got1, got2)
	}
	if backend.fetched[id] != 1 {
		t.Fatalf("expected exactly one backend fetch, got %d", backend.fetched[id])
	}
}

func TestGetAssetQueuesWaitersWhilePending(t *testing.T) {
	id := uuid.New()
	var pendingDone func([]byte, apc.AssetStatus)
	backend := newStub(func(i uuid.UUID, done func([]byte, apc.AssetStatus)) {
		pendingDone = done // don't resolve yet
	})
	cache, err := NewAssetCache(":memory:", backend)
	if err != nil {
		t.Fatalf("NewAssetCache: %v", err)
	}
	defer cache.Close()

	var calls int
	cache.GetAsset(id, func(payload []byte, status apc.AssetStatus) { calls++ })
	cache.GetAsset(id, func(payload []byte, status apc.AssetStatus) { calls++ })
	if calls != 0 {
		t.Fatalf("expected no callback to fire before resolution, got %d", calls)
	}
	pendingDone([]byte("x"), apc.AssetReady)
	if calls != 2 {
		t.Fatalf("expected both waiters to fire on resolution, got %d", calls)
	}
}

func TestTextureCacheFallsBackOnParseFailure(t *testing.T) {
	id := uuid.New()
	backend := newStub(func(i uuid.UUID, done func([]byte, apc.AssetStatus)) {
		done([]byte("0123456789"), apc.AssetReady)
	})
	assets, err := NewAssetCache(":memory:", backend)
	if err != nil {
		t.Fatalf("NewAssetCache: %v", err)
	}
	defer assets.Close()

	extractor := fakeExtractor{err: errors.New("bad codestream")}
	textures := NewTextureCache(assets, extractor)

	var rec TextureRecord
	textures.GetTexture(id, func(payload []byte, status apc.AssetStatus, meta TextureRecord) {
		rec = meta
	})
	if len(rec.DiscardOffsets) != 1 || rec.DiscardOffsets[0] != 10 {
		t.Fatalf("expected single-entry fallback table covering full length, got %+v", rec)
	}
}

type fakeExtractor struct {
	err error
}

func (f fakeExtractor) Extract(payload []byte) (int, int, []int64, error) {
	if f.err != nil {
		return 0, 0, nil, f.err
	}
	return 0, 0, nil, nil
}
