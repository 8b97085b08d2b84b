package session

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn"
)

// WearableSlot indexes the 15 fixed wearable slots.
type WearableSlot int

// SetWearable assigns item/asset ids to a wearable slot, marking the
// session's appearance dirty for the next appearance-update broadcast.
func (s *Session) SetWearable(slot WearableSlot, itemID, assetID uuid.UUID) error {
	if slot < 0 || int(slot) >= NumWearableSlots {
		return cmn.NewValidation("wearable slot out of range")
	}
	s.Wearables[slot] = Wearable{ItemID: itemID, AssetID: assetID}
	s.Flags |= apc.FlagAppearanceDirty
	return nil
}

// AddAnimation appends an additional animation with the next sequence
// number, used alongside the base locomotion animation.
func (s *Session) AddAnimation(animID uuid.UUID) AnimEntry {
	entry := AnimEntry{AnimID: animID, Seq: s.NextAnimSeq()}
	s.Anims = append(s.Anims, entry)
	s.Flags |= apc.FlagAnimUpdate
	return entry
}

// ClearAnimationByID removes one specific running animation.
func (s *Session) ClearAnimationByID(animID uuid.UUID) {
	out := s.Anims[:0]
	for _, a := range s.Anims {
		if a.AnimID != animID {
			out = append(out, a)
		}
	}
	s.Anims = out
	s.Flags |= apc.FlagAnimUpdate
}

// ClearAnimationByType removes every running animation for which match
// reports true, e.g. clearing every animation of a given asset category.
func (s *Session) ClearAnimationByType(match func(animID uuid.UUID) bool) {
	out := s.Anims[:0]
	for _, a := range s.Anims {
		if !match(a.AnimID) {
			out = append(out, a)
		}
	}
	s.Anims = out
	s.Flags |= apc.FlagAnimUpdate
}
