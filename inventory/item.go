// Package inventory holds inventory items/folders and the process-wide
// asset/texture cache (grounded on AIStore's LOM + backend-provider
// layer: a stable-id-keyed record with a status and a pluggable fetch
// path on miss).
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Perms mirrors world.Perms; kept as a separate type so inventory never
// has to import package world.
type Perms struct {
	Base, Current, Group, Everyone, Next uint32
}

// Item is an inventory item record: id, folder id, owner id, creator
// (both text and UUID forms), asset id, type tags, sale info, full
// permission quintuple, flags, creation date, and an optional embedded
// asset. Items inside a prim additionally carry a script-private handle
// linking to the script host.
type Item struct {
	ItemID   uuid.UUID
	FolderID uuid.UUID
	OwnerID  uuid.UUID

	CreatorID   uuid.UUID
	CreatorName string

	AssetID  uuid.UUID
	AssetType int32
	InvType   int32

	SaleType  int32
	SalePrice int32

	Perms Perms
	Flags uint32

	Name        string
	Description string

	CreationDate time.Time

	// EmbeddedAsset is non-nil when the item carries its payload inline
	// rather than by reference (e.g. notecards created in-world).
	EmbeddedAsset []byte

	// ScriptHandle is set only for items inside a prim that are scripts;
	// it is the opaque handle into the script host's VM table.
	IsScript     bool
	ScriptHandle uint64
}

func NewItem(owner uuid.UUID, assetType, invType int32) *Item {
	return &Item{
		ItemID:       uuid.New(),
		OwnerID:      owner,
		CreatorID:    owner,
		AssetType:    assetType,
		InvType:      invType,
		CreationDate: time.Now(),
		Perms:        Perms{Base: 0x7fffffff, Current: 0x7fffffff, Next: 0x7fffffff},
	}
}
