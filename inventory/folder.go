package inventory

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn"
)

// Folder is a name, folder id, parent-folder id, owner id, and an
// asset-type filter; sub-folders and items are a lazy collection
// retrieved on demand, not eagerly loaded.
type Folder struct {
	FolderID       uuid.UUID
	ParentID       uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	AssetTypeFilter int32

	children map[uuid.UUID]*Folder
	items    map[uuid.UUID]*Item
}

func NewFolder(owner uuid.UUID, name string) *Folder {
	return &Folder{
		FolderID: uuid.New(),
		OwnerID:  owner,
		Name:     name,
		children: make(map[uuid.UUID]*Folder),
		items:    make(map[uuid.UUID]*Item),
	}
}

// Children lazily returns the subfolder set; the map is allocated on
// first touch so an empty folder costs nothing beyond the struct.
func (f *Folder) Children() map[uuid.UUID]*Folder {
	if f.children == nil {
		f.children = make(map[uuid.UUID]*Folder)
	}
	return f.children
}

func (f *Folder) Items() map[uuid.UUID]*Item {
	if f.items == nil {
		f.items = make(map[uuid.UUID]*Item)
	}
	return f.items
}

// AddSubfolder links a child folder under f.
func (f *Folder) AddSubfolder(child *Folder) {
	child.ParentID = f.FolderID
	f.Children()[child.FolderID] = child
}

// AddItem inserts item, refusing once the folder holds
// apc.MaxFolderEntries items (resource-exhaustion: refuse rather than
// silently truncate).
func (f *Folder) AddItem(item *Item) error {
	items := f.Items()
	if len(items) >= apc.MaxFolderEntries {
		return cmn.NewResourceExhausted("inventory folder full")
	}
	item.FolderID = f.FolderID
	items[item.ItemID] = item
	return nil
}

func (f *Folder) RemoveItem(itemID uuid.UUID) {
	delete(f.Items(), itemID)
}
