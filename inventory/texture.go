package inventory

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// TextureMetadataExtractor parses a JPEG-2000 codestream header into
// decoded dimensions and a per-discard-level byte-offset table. The
// actual codestream parsing is an external collaborator (out of scope for
// the core); the core only consumes the result and supplies the graceful
// fallback below when extraction fails.
type TextureMetadataExtractor interface {
	Extract(payload []byte) (width, height int, discardOffsets []int64, err error)
}

// TextureRecord is a texture's cached metadata: decoded size plus a
// per-discard-level byte-offset table. Entry 0 always covers the full
// asset length — the full-resolution image.
type TextureRecord struct {
	Width, Height int
	DiscardOffsets []int64
}

// TextureCache wraps an AssetCache with JPEG-2000-aware metadata, keyed
// by the same asset ids as ordinary assets.
type TextureCache struct {
	assets    *AssetCache
	extractor TextureMetadataExtractor

	records map[uuid.UUID]TextureRecord
}

func NewTextureCache(assets *AssetCache, extractor TextureMetadataExtractor) *TextureCache {
	return &TextureCache{
		assets:    assets,
		extractor: extractor,
		records:   make(map[uuid.UUID]TextureRecord),
	}
}

// GetTexture resolves id exactly like AssetCache.GetAsset, additionally
// populating (and caching) the discard-level table on first Ready
// delivery. If metadata parsing fails, a single-entry table covering the
// whole asset length is used instead of surfacing the error — the wire
// consumer still needs a usable discard table.
func (t *TextureCache) GetTexture(id uuid.UUID, cb func(payload []byte, status apc.AssetStatus, meta TextureRecord)) {
	t.assets.GetAsset(id, func(payload []byte, status apc.AssetStatus) {
		if status != apc.AssetReady {
			cb(payload, status, TextureRecord{})
			return
		}
		if rec, ok := t.records[id]; ok {
			cb(payload, status, rec)
			return
		}
		rec := t.buildRecord(id, payload)
		t.records[id] = rec
		cb(payload, status, rec)
	})
}

func (t *TextureCache) buildRecord(id uuid.UUID, payload []byte) TextureRecord {
	w, h, offsets, err := t.extractor.Extract(payload)
	if err != nil || len(offsets) == 0 {
		if err != nil {
			nlog.Warningf("texture %s: metadata parse failed, using single-entry table: %v", id, err)
		}
		return TextureRecord{DiscardOffsets: []int64{int64(len(payload))}}
	}
	return TextureRecord{Width: w, Height: h, DiscardOffsets: offsets}
}
