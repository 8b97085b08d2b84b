package session

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
)

// MarkDirty and MarkDeleted implement world.UpdateSink: the world store
// notifies every subscribed session of per-object dirty bits without
// importing package session itself, avoiding a world<->session cycle.
// This session folds the bits into its own composite-update batch,
// flushed to the viewer on its own schedule (the POSROT/full-update
// split the spec's per-tick protocol distinguishes by dirty bit).

func (s *Session) MarkDirty(objID uuid.UUID, bits apc.DirtyBit) {
	s.dirty[objID] |= bits
}

func (s *Session) MarkDeleted(localID uint32) {
	s.deleted[localID] = true
}

// DrainDirty returns and clears the accumulated per-object dirty bits
// and deleted-local-id set, for the main loop's per-tick viewer update
// pass.
func (s *Session) DrainDirty() (dirty map[uuid.UUID]apc.DirtyBit, deleted map[uint32]bool) {
	dirty, deleted = s.dirty, s.deleted
	s.dirty = make(map[uuid.UUID]apc.DirtyBit)
	s.deleted = make(map[uint32]bool)
	return dirty, deleted
}
