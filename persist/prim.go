package persist

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/inventory"
	"github.com/rezsim/rez/world"
)

func unixToTime(sec uint32) time.Time { return time.Unix(int64(sec), 0).UTC() }

// Resolver supplies the out-of-band lookups WritePrimRecord needs: the
// full inventory.Item behind a prim's InventoryItemRef (Prim itself only
// keeps the thin world.InventoryItemRef to avoid a world<->inventory
// import cycle), and a prim's linkset children in the order to persist
// them.
type Resolver struct {
	Item     func(itemID uuid.UUID) (*inventory.Item, bool)
	Children func(prim *world.Prim) []*world.Prim
}

// WritePrimRecord writes one PRIM_V3 record for p: its fields, then
// len(p.Inventory) inventory records terminated by the 0 magic, then
// p's children recursively. Matches the original writer's per-prim
// layout exactly so a v3 record round-trips through Persist/Load
// without loss (spec.md §8's round-trip law).
func WritePrimRecord(w *Writer, p *world.Prim, res Resolver) error {
	w.WriteU32(MagicPrimV3)
	w.WriteUUID(p.ID)
	w.WriteU32(p.LocalID)
	w.WriteVector3(p.WorldPos)
	w.WriteVector3(p.LocalPos)
	w.WriteVector3(p.Scale)
	w.WriteQuat(p.Rot)
	w.WriteVector3(p.Vel)

	w.WriteU8(p.Shape.ProfileCurve)
	w.WriteU8(p.Shape.PathCurve)
	w.WriteU16(uint16(p.Shape.PathBegin))
	w.WriteU16(uint16(p.Shape.PathEnd))
	w.WriteU16(uint16(p.Shape.ProfileBegin))
	w.WriteU16(uint16(p.Shape.ProfileEnd))
	w.WriteU16(uint16(p.Shape.Hollow))
	w.WriteU8(uint8(p.Shape.TwistBegin))
	w.WriteU8(uint8(p.Shape.TwistEnd))
	w.WriteU8(uint8(p.Shape.TaperX))
	w.WriteU8(uint8(p.Shape.TaperY))
	w.WriteU8(uint8(p.Shape.ShearX))
	w.WriteU8(uint8(p.Shape.ShearY))
	w.WriteU8(p.Shape.ScaleX)
	w.WriteU8(p.Shape.ScaleY)

	w.WriteInt32(p.Material)
	w.WriteBytes(p.TextureEntry)
	w.WriteBytes(p.ExtraParams)
	w.WriteU8(p.HoverColor[0])
	w.WriteU8(p.HoverColor[1])
	w.WriteU8(p.HoverColor[2])
	w.WriteU8(p.HoverColor[3])
	w.WriteString(p.HoverText)

	w.WriteUUID(p.Creator)
	w.WriteUUID(p.Owner)
	w.WriteU32(p.Perms.Base)
	w.WriteU32(p.Perms.Current)
	w.WriteU32(p.Perms.Group)
	w.WriteU32(p.Perms.Everyone)
	w.WriteU32(p.Perms.Next)
	w.WriteInt32(p.SalePrice)
	w.WriteInt32(p.SaleType)
	w.WriteU32(uint32(p.CreationDate.Unix()))

	w.WriteVector3(p.SitTargetOffset)
	w.WriteQuat(p.SitTargetRot)
	w.WriteString(p.TouchAction)
	w.WriteString(p.SitAction)
	w.WriteU32(p.Flags)

	if err := w.Err(); err != nil {
		return err
	}

	w.WriteU32(uint32(len(p.Inventory)))
	for _, ref := range p.Inventory {
		item, ok := res.Item(ref.ItemID)
		if !ok {
			return fmt.Errorf("persist: no inventory.Item for %s referenced by prim %s", ref.ItemID, p.ID)
		}
		if err := WriteInventoryRecord(w, item); err != nil {
			return err
		}
	}
	w.WriteU32(magicEnd)

	children := res.Children(p)
	w.WriteU32(uint32(len(children)))
	for _, child := range children {
		if err := WritePrimRecord(w, child, res); err != nil {
			return err
		}
	}
	return w.Err()
}

// PrimRecord is a loaded prim plus its resolved inventory items and
// children, mirroring what the original nested layout encodes.
type PrimRecord struct {
	Prim      *world.Prim
	Inventory []*inventory.Item
	Children  []*PrimRecord
}

// ReadPrimRecord reads one PRIM_V3 record (and its nested inventory and
// child records), assuming its magic has already been consumed and
// matched by the caller.
func ReadPrimRecord(r *Reader) (*PrimRecord, error) {
	p := &world.Prim{}
	p.Kind = world.KindPrim
	p.ID = r.ReadUUID()
	p.LocalID = r.ReadU32()
	p.WorldPos = r.ReadVector3()
	p.LocalPos = r.ReadVector3()
	p.Scale = r.ReadVector3()
	p.Rot = r.ReadQuat()
	p.Vel = r.ReadVector3()

	p.Shape.ProfileCurve = r.ReadU8()
	p.Shape.PathCurve = r.ReadU8()
	p.Shape.PathBegin = int16(r.ReadU16())
	p.Shape.PathEnd = int16(r.ReadU16())
	p.Shape.ProfileBegin = int16(r.ReadU16())
	p.Shape.ProfileEnd = int16(r.ReadU16())
	p.Shape.Hollow = int16(r.ReadU16())
	p.Shape.TwistBegin = int8(r.ReadU8())
	p.Shape.TwistEnd = int8(r.ReadU8())
	p.Shape.TaperX = int8(r.ReadU8())
	p.Shape.TaperY = int8(r.ReadU8())
	p.Shape.ShearX = int8(r.ReadU8())
	p.Shape.ShearY = int8(r.ReadU8())
	p.Shape.ScaleX = r.ReadU8()
	p.Shape.ScaleY = r.ReadU8()

	p.Material = r.ReadInt32()
	p.TextureEntry = r.ReadBytes()
	p.ExtraParams = r.ReadBytes()
	p.HoverColor[0] = r.ReadU8()
	p.HoverColor[1] = r.ReadU8()
	p.HoverColor[2] = r.ReadU8()
	p.HoverColor[3] = r.ReadU8()
	p.HoverText = r.ReadString()

	p.Creator = r.ReadUUID()
	p.Owner = r.ReadUUID()
	p.Perms.Base = r.ReadU32()
	p.Perms.Current = r.ReadU32()
	p.Perms.Group = r.ReadU32()
	p.Perms.Everyone = r.ReadU32()
	p.Perms.Next = r.ReadU32()
	p.SalePrice = r.ReadInt32()
	p.SaleType = r.ReadInt32()
	p.CreationDate = unixToTime(r.ReadU32())

	p.SitTargetOffset = r.ReadVector3()
	p.SitTargetRot = r.ReadQuat()
	p.TouchAction = r.ReadString()
	p.SitAction = r.ReadString()
	p.Flags = r.ReadU32()

	if r.Err() != nil {
		return nil, fmt.Errorf("persist: reading prim record: %w", r.Err())
	}

	rec := &PrimRecord{Prim: p}

	numItems := r.ReadU32()
	for i := uint32(0); i < numItems; i++ {
		magic, err := ReadMagic(r)
		if err != nil {
			return nil, err
		}
		if magic != MagicInvV1 {
			return nil, fmt.Errorf("persist: expected inventory magic, got %#x", magic)
		}
		item, err := ReadInventoryRecord(r)
		if err != nil {
			return nil, err
		}
		rec.Inventory = append(rec.Inventory, item)
		p.Inventory = append(p.Inventory, world.InventoryItemRef{
			ItemID:  item.ItemID,
			AssetID: item.AssetID,
			Name:    item.Name,
		})
	}
	if end := r.ReadU32(); end != magicEnd || r.Err() != nil {
		return nil, fmt.Errorf("persist: missing end-of-inventory sentinel for prim %s", p.ID)
	}

	numChildren := r.ReadU32()
	for i := uint32(0); i < numChildren; i++ {
		magic, err := ReadMagic(r)
		if err != nil {
			return nil, err
		}
		if magic != MagicPrimV3 {
			return nil, fmt.Errorf("persist: expected child prim magic, got %#x", magic)
		}
		child, err := ReadPrimRecord(r)
		if err != nil {
			return nil, err
		}
		rec.Children = append(rec.Children, child)
		p.ChildIDs = append(p.ChildIDs, child.Prim.ID)
	}
	return rec, nil
}
