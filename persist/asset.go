package persist

import (
	"fmt"

	"github.com/google/uuid"
)

// Asset is the on-disk shape of one asset record: id, type tag, name,
// and payload bytes. Embedded assets (inline on an inventory item) and
// standalone assets share this shape.
type Asset struct {
	AssetID uuid.UUID
	Type    int32
	Name    string
	Data    []byte
}

// WriteAssetRecord writes one ASSET_V1 record.
func WriteAssetRecord(w *Writer, a Asset) error {
	w.WriteU32(MagicAssetV1)
	w.WriteUUID(a.AssetID)
	w.WriteInt32(a.Type)
	w.WriteString(a.Name)
	w.WriteBytes(a.Data)
	return w.Err()
}

// ReadAssetRecord reads one ASSET_V1 record, assuming its magic has
// already been consumed and matched by the caller.
func ReadAssetRecord(r *Reader) (Asset, error) {
	var a Asset
	a.AssetID = r.ReadUUID()
	a.Type = r.ReadInt32()
	a.Name = r.ReadString()
	a.Data = r.ReadBytes()
	if r.Err() != nil {
		return Asset{}, fmt.Errorf("persist: reading asset record: %w", r.Err())
	}
	return a, nil
}
