package inventory

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// AssetBackend is the grid glue's asset half: Fetch is called on a cache
// miss, Put forwards a new asset for storage. Both are asynchronous —
// results arrive via the supplied callback, re-entering the main loop.
type AssetBackend interface {
	Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus))
	Put(payload []byte, done func(finalID uuid.UUID, err error))
}

// assetRecord is what AssetCache persists in buntdb, keyed by asset id.
// Payload bytes are NOT persisted here (they belong to the backend's own
// durable store); this is metadata only, matching spec.md §4.2's "record
// holding {status, payload, waiter list}" with payload kept in memory.
type assetRecord struct {
	Status apc.AssetStatus `json:"status"`
}

type cacheEntry struct {
	status  apc.AssetStatus
	payload []byte
	waiters []func(payload []byte, status apc.AssetStatus)
}

// AssetCache is the process-wide map from asset id to record described by
// the spec: get_asset inserts a Pending entry and forwards to the grid
// glue on miss, appends the callback to the waiter list on Pending, or
// invokes it synchronously on Ready/Missing.
type AssetCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	meta    *buntdb.DB
	backend AssetBackend
}

// NewAssetCache opens (or creates) a buntdb-backed metadata store at path
// and binds it to a grid asset backend. Pass ":memory:" for tests.
func NewAssetCache(path string, backend AssetBackend) (*AssetCache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &AssetCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		meta:    db,
		backend: backend,
	}, nil
}

func (c *AssetCache) Close() error { return c.meta.Close() }

func (c *AssetCache) persist(id uuid.UUID, status apc.AssetStatus) {
	rec, err := json.Marshal(assetRecord{Status: status})
	if err != nil {
		nlog.Warningf("assetcache: marshal %s: %v", id, err)
		return
	}
	if err := c.meta.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(id.String(), string(rec), nil)
		return err
	}); err != nil {
		nlog.Warningf("assetcache: persist %s: %v", id, err)
	}
}

// GetAsset resolves id: synchronously if the entry is Ready/Missing,
// queued on the existing waiter list if Pending, or freshly fetched from
// the backend (entry marked Pending first) on a cold miss.
func (c *AssetCache) GetAsset(id uuid.UUID, cb func(payload []byte, status apc.AssetStatus)) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &cacheEntry{status: apc.AssetPending}
		c.entries[id] = e
		e.waiters = append(e.waiters, cb)
		c.persist(id, apc.AssetPending)
		c.mu.Unlock()

		c.backend.Fetch(id, func(payload []byte, status apc.AssetStatus) {
			c.resolve(id, payload, status)
		})
		return
	}
	switch e.status {
	case apc.AssetPending:
		e.waiters = append(e.waiters, cb)
		c.mu.Unlock()
	default:
		payload, status := e.payload, e.status
		c.mu.Unlock()
		cb(payload, status)
	}
}

func (c *AssetCache) resolve(id uuid.UUID, payload []byte, status apc.AssetStatus) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &cacheEntry{}
		c.entries[id] = e
	}
	e.status = status
	e.payload = payload
	waiters := e.waiters
	e.waiters = nil
	c.mu.Unlock()

	c.persist(id, status)
	for _, w := range waiters {
		w(payload, status)
	}
}

// PutAsset forwards payload to the grid glue; its reply carries the
// (possibly server-assigned) final id, which is what cb receives.
func (c *AssetCache) PutAsset(payload []byte, cb func(finalID uuid.UUID, err error)) {
	c.backend.Put(payload, func(finalID uuid.UUID, err error) {
		if err == nil {
			c.resolve(finalID, payload, apc.AssetReady)
		}
		cb(finalID, err)
	})
}
