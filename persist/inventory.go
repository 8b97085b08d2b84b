package persist

import (
	"fmt"
	"time"

	"github.com/rezsim/rez/inventory"
)

// WriteInventoryRecord writes one INV_V1 record for item, optionally
// followed by one nested ASSET_V1 record when item carries an embedded
// asset (e.g. an in-world-authored notecard).
func WriteInventoryRecord(w *Writer, item *inventory.Item) error {
	w.WriteU32(MagicInvV1)
	w.WriteUUID(item.ItemID)
	w.WriteUUID(item.FolderID)
	w.WriteUUID(item.OwnerID)
	w.WriteUUID(item.CreatorID)
	w.WriteString(item.CreatorName)
	w.WriteUUID(item.AssetID)
	w.WriteInt32(item.AssetType)
	w.WriteInt32(item.InvType)
	w.WriteInt32(item.SaleType)
	w.WriteInt32(item.SalePrice)
	w.WriteU32(item.Perms.Base)
	w.WriteU32(item.Perms.Current)
	w.WriteU32(item.Perms.Group)
	w.WriteU32(item.Perms.Everyone)
	w.WriteU32(item.Perms.Next)
	w.WriteU32(item.Flags)
	w.WriteString(item.Name)
	w.WriteString(item.Description)
	w.WriteU32(uint32(item.CreationDate.Unix()))

	hasEmbedded := uint8(0)
	if item.EmbeddedAsset != nil {
		hasEmbedded = 1
	}
	w.WriteU8(hasEmbedded)
	if hasEmbedded == 1 {
		if err := WriteAssetRecord(w, Asset{
			AssetID: item.AssetID,
			Type:    item.AssetType,
			Name:    item.Name,
			Data:    item.EmbeddedAsset,
		}); err != nil {
			return err
		}
	}
	return w.Err()
}

// ReadInventoryRecord reads one INV_V1 record, assuming its magic has
// already been consumed and matched by the caller.
func ReadInventoryRecord(r *Reader) (*inventory.Item, error) {
	item := &inventory.Item{}
	item.ItemID = r.ReadUUID()
	item.FolderID = r.ReadUUID()
	item.OwnerID = r.ReadUUID()
	item.CreatorID = r.ReadUUID()
	item.CreatorName = r.ReadString()
	item.AssetID = r.ReadUUID()
	item.AssetType = r.ReadInt32()
	item.InvType = r.ReadInt32()
	item.SaleType = r.ReadInt32()
	item.SalePrice = r.ReadInt32()
	item.Perms.Base = r.ReadU32()
	item.Perms.Current = r.ReadU32()
	item.Perms.Group = r.ReadU32()
	item.Perms.Everyone = r.ReadU32()
	item.Perms.Next = r.ReadU32()
	item.Flags = r.ReadU32()
	item.Name = r.ReadString()
	item.Description = r.ReadString()
	item.CreationDate = time.Unix(int64(r.ReadU32()), 0).UTC()

	hasEmbedded := r.ReadU8()
	if r.Err() != nil {
		return nil, fmt.Errorf("persist: reading inventory record: %w", r.Err())
	}
	if hasEmbedded == 1 {
		magic, err := ReadMagic(r)
		if err != nil {
			return nil, err
		}
		if magic != MagicAssetV1 {
			return nil, fmt.Errorf("persist: expected embedded asset magic, got %#x", magic)
		}
		asset, err := ReadAssetRecord(r)
		if err != nil {
			return nil, err
		}
		item.EmbeddedAsset = asset.Data
	}
	return item, nil
}
