package persist

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/inventory"
	"github.com/rezsim/rez/world"
)

func newTestPrim(owner uuid.UUID) *world.Prim {
	p := world.NewPrim(owner)
	p.WorldPos = world.Vector3{X: 128, Y: 129, Z: 25.5}
	p.LocalPos = p.WorldPos
	p.Scale = world.Vector3{X: 1, Y: 2, Z: 0.5}
	p.Rot = world.Quat{X: 0, Y: 0, Z: 0.7071, W: 0.7071}
	p.Shape.ProfileCurve = 1
	p.Shape.PathCurve = 16
	p.Shape.ScaleX = 100
	p.Shape.ScaleY = 100
	p.TextureEntry = []byte{0x01, 0x02, 0x03}
	p.HoverText = "hello"
	p.CreationDate = time.Unix(1_700_000_000, 0).UTC()
	return p
}

func itemFor(p *world.Prim, name string, embedded []byte) *inventory.Item {
	item := &inventory.Item{
		ItemID:       uuid.New(),
		FolderID:     uuid.New(),
		OwnerID:      p.Owner,
		CreatorID:    p.Creator,
		CreatorName:  "Someone Resident",
		AssetID:      uuid.New(),
		AssetType:    10,
		InvType:      10,
		Name:         name,
		Description:  "a test notecard",
		CreationDate: time.Unix(1_700_000_100, 0).UTC(),
		EmbeddedAsset: embedded,
	}
	p.Inventory = append(p.Inventory, world.InventoryItemRef{
		ItemID: item.ItemID, AssetID: item.AssetID, Name: item.Name,
	})
	return item
}

// buildResolver wires a Resolver over a flat map of items and a
// parent->children adjacency, the same shape a running region's world
// state keeps in memory.
func buildResolver(items map[uuid.UUID]*inventory.Item, children map[uuid.UUID][]*world.Prim) Resolver {
	return Resolver{
		Item: func(itemID uuid.UUID) (*inventory.Item, bool) {
			it, ok := items[itemID]
			return it, ok
		},
		Children: func(p *world.Prim) []*world.Prim { return children[p.ID] },
	}
}

func TestPrimRecordRoundTripWithInventoryAndChildren(t *testing.T) {
	owner := uuid.New()
	root := newTestPrim(owner)
	child := newTestPrim(owner)
	root.ChildIDs = []uuid.UUID{child.ID}

	items := map[uuid.UUID]*inventory.Item{}
	noteItem := itemFor(root, "a notecard", []byte("line one\nline two"))
	items[noteItem.ItemID] = noteItem
	scriptItem := itemFor(child, "a script", nil)
	items[scriptItem.ItemID] = scriptItem

	children := map[uuid.UUID][]*world.Prim{root.ID: {child}}
	res := buildResolver(items, children)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := WritePrimRecord(w, root, res); err != nil {
		t.Fatalf("WritePrimRecord: %v", err)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("writer error: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	magic, err := ReadMagic(r)
	if err != nil {
		t.Fatalf("ReadMagic: %v", err)
	}
	if magic != MagicPrimV3 {
		t.Fatalf("magic = %#x, want %#x", magic, MagicPrimV3)
	}
	rec, err := ReadPrimRecord(r)
	if err != nil {
		t.Fatalf("ReadPrimRecord: %v", err)
	}

	if rec.Prim.ID != root.ID {
		t.Fatalf("round-tripped ID = %s, want %s", rec.Prim.ID, root.ID)
	}
	if rec.Prim.WorldPos != root.WorldPos {
		t.Fatalf("WorldPos mismatch: got %+v want %+v", rec.Prim.WorldPos, root.WorldPos)
	}
	if rec.Prim.HoverText != "hello" {
		t.Fatalf("HoverText = %q, want %q", rec.Prim.HoverText, "hello")
	}
	if !bytes.Equal(rec.Prim.TextureEntry, root.TextureEntry) {
		t.Fatalf("TextureEntry mismatch")
	}
	if len(rec.Inventory) != 1 || rec.Inventory[0].ItemID != noteItem.ItemID {
		t.Fatalf("expected 1 inventory item matching noteItem, got %+v", rec.Inventory)
	}
	if !bytes.Equal(rec.Inventory[0].EmbeddedAsset, noteItem.EmbeddedAsset) {
		t.Fatalf("embedded asset mismatch: got %q want %q", rec.Inventory[0].EmbeddedAsset, noteItem.EmbeddedAsset)
	}
	if len(rec.Children) != 1 || rec.Children[0].Prim.ID != child.ID {
		t.Fatalf("expected 1 child matching child prim, got %+v", rec.Children)
	}
	if len(rec.Children[0].Inventory) != 1 || rec.Children[0].Inventory[0].ItemID != scriptItem.ItemID {
		t.Fatalf("expected child's inventory to contain scriptItem, got %+v", rec.Children[0].Inventory)
	}
}

func TestReadPrimRecordRejectsMissingInventorySentinel(t *testing.T) {
	owner := uuid.New()
	root := newTestPrim(owner)
	res := buildResolver(nil, nil)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := WritePrimRecord(w, root, res); err != nil {
		t.Fatalf("WritePrimRecord: %v", err)
	}

	// Truncate the buffer right after the inventory count so the
	// end-of-inventory sentinel and child count never get written and
	// the reader hits io.ErrUnexpectedEOF/missing-sentinel behavior.
	truncated := buf.Bytes()[:buf.Len()-8]

	r := NewReader(bytes.NewReader(truncated))
	if _, err := ReadMagic(r); err != nil {
		t.Fatalf("ReadMagic: %v", err)
	}
	if _, err := ReadPrimRecord(r); err == nil {
		t.Fatalf("expected an error reading a truncated prim record, got nil")
	}
}

func TestSaveAndLoadSimStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	owner := uuid.New()
	root := newTestPrim(owner)
	res := buildResolver(nil, nil)

	if err := SaveSimState(dir, "region1", []*world.Prim{root}, res); err != nil {
		t.Fatalf("SaveSimState: %v", err)
	}

	roots, err := LoadSimState(dir, "region1")
	if err != nil {
		t.Fatalf("LoadSimState: %v", err)
	}
	if len(roots) != 1 || roots[0].Prim.ID != root.ID {
		t.Fatalf("expected 1 root matching %s, got %+v", root.ID, roots)
	}

	shortNames, err := ScanSimStateDir(dir)
	if err != nil {
		t.Fatalf("ScanSimStateDir: %v", err)
	}
	found := false
	for _, n := range shortNames {
		if n == "region1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ScanSimStateDir(%q) = %v, want it to contain %q", dir, shortNames, "region1")
	}
}

func TestRepairSimStateReconstructsFromShards(t *testing.T) {
	dir := t.TempDir()
	owner := uuid.New()
	root := newTestPrim(owner)
	res := buildResolver(nil, nil)

	if err := SaveSimState(dir, "region2", []*world.Prim{root}, res); err != nil {
		t.Fatalf("SaveSimState: %v", err)
	}

	primaryPath := dir + "/simstate-region2.dat"
	if err := os.Remove(primaryPath); err != nil {
		t.Fatalf("removing primary file to force repair: %v", err)
	}

	roots, err := RepairSimState(dir, "region2")
	if err != nil {
		t.Fatalf("RepairSimState: %v", err)
	}
	if len(roots) != 1 || roots[0].Prim.ID != root.ID {
		t.Fatalf("expected reconstructed root matching %s, got %+v", root.ID, roots)
	}
}
