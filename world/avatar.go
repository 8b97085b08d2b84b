package world

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
)

// Avatar is the "Avatar" object variant: additionally holds a footfall
// plane and indexed attachment slots.
type Avatar struct {
	Base

	// Footfall is the contact plane last computed by physics (nx,ny,nz,d),
	// used for animation selection.
	Footfall [4]float64

	// Attachments is indexed 1..38 (31..38 are HUD slots); index 0 unused.
	Attachments [apc.AttachPointMax + 1]*uuid.UUID

	IsFlying bool
	Grounded bool
}

func NewAvatar() *Avatar {
	return &Avatar{
		Base: Base{
			ID:    uuid.New(),
			Kind:  KindAvatar,
			Scale: Vector3{X: 0.45, Y: 0.6, Z: 1.9},
			Rot:   IdentityQuat(),
		},
	}
}

// Attach stores prim's id in the given attachment slot and parents the
// prim to this avatar; the prim itself records no attach point.
func (a *Avatar) Attach(point int, prim *Prim) error {
	if point < apc.AttachPointMin || point > apc.AttachPointMax {
		return errInvalidAttachPoint
	}
	id := prim.ID
	a.Attachments[point] = &id
	prim.HasParent = true
	prim.ParentKind = ParentAvatar
	prim.ParentID = a.ID
	return nil
}

func (a *Avatar) Detach(point int) {
	if point < apc.AttachPointMin || point > apc.AttachPointMax {
		return
	}
	a.Attachments[point] = nil
}

func (a *Avatar) IsHUD(point int) bool {
	return point >= apc.AttachPointHUDMin && point <= apc.AttachPointHUDMax
}
