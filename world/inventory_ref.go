package world

import "github.com/google/uuid"

// InventoryItemRef is what a Prim keeps inline: enough to find the full
// inventory.Item record and, for scripts, the script host's VM handle. The
// full inventory.Item lives in package inventory to avoid a world<->
// inventory import cycle (inventory never needs to reach back into world).
type InventoryItemRef struct {
	ItemID       uuid.UUID
	AssetID      uuid.UUID
	Name         string
	IsScript     bool
	ScriptHandle uint64 // opaque handle into the script host's VM table
}
