package world

import (
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
)

// Perms is the five-way permission mask carried by every prim.
type Perms struct {
	Base, Current, Group, Everyone, Next uint32
}

// ShapeParams holds the profile curve, path curve, and the
// begin/end/hollow/twist/taper/shear/scale fields that describe a prim's
// extruded shape. Quantized fields are stored as int8/int16 exactly as the
// wire format requires; SetPrimitiveParams (params.go) applies the ×100/
// ×50000 quantization on the way in.
type ShapeParams struct {
	ProfileCurve uint8
	PathCurve    uint8

	PathBegin, PathEnd int16 // ×50000 quantized fraction [0,1]
	ProfileBegin, ProfileEnd int16
	Hollow                   int16

	TwistBegin, TwistEnd int8 // ×100 quantized [-1,1]
	TaperX, TaperY       int8
	ShearX, ShearY       int8
	ScaleX, ScaleY       uint8
}

// PrimFlag is the prim flags bitset.
type PrimFlag uint32

const (
	FlagPhysical PrimFlag = 1 << iota
	FlagPhantom
	FlagTouchEnabled
	FlagTemporary
	FlagDieAtEdge
)

// Prim is the "Prim" object variant: a rezzed, linkable world object.
type Prim struct {
	Base

	Shape        ShapeParams
	Material     int32
	TextureEntry []byte
	ExtraParams  []byte // framed TLV blob, see extraparams.go
	HoverText    string
	HoverColor   [4]byte

	Creator, Owner uuid.UUID
	Perms          Perms
	SalePrice      int32
	SaleType       int32
	CreationDate   time.Time

	SitTargetOffset Vector3
	SitTargetRot    Quat
	TouchAction     string
	SitAction       string

	Flags uint32

	// linkset structure: ordered child ids (root has no ParentID of its
	// own kind within the set) and a cached root pointer id.
	RootID   uuid.UUID // equals ID for the root of its own linkset
	ChildIDs []uuid.UUID

	Inventory []InventoryItemRef

	SittingAvatars []uuid.UUID
	PrimarySeat    *uuid.UUID
}

// IsRoot reports whether this prim is the root of its linkset.
func (p *Prim) IsRoot() bool { return p.RootID == p.ID }

func NewPrim(owner uuid.UUID) *Prim {
	id := uuid.New()
	return &Prim{
		Base: Base{
			ID:     id,
			Kind:   KindPrim,
			Scale:  Vector3{X: 0.5, Y: 0.5, Z: 0.5},
			Rot:    IdentityQuat(),
		},
		RootID:       id,
		Creator:      owner,
		Owner:        owner,
		CreationDate: time.Now(),
		Perms:        Perms{Base: 0x7fffffff, Current: 0x7fffffff, Next: 0x7fffffff},
	}
}

// CanLinkMore reports whether this linkset root can absorb n additional
// children without exceeding the linkset child-count limit.
func (p *Prim) CanLinkMore(n int) bool {
	return len(p.ChildIDs)+n <= apc.MaxLinksetChildren
}
