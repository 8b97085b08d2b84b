// Package physics is the bridge between the world's rigid-body records
// and an underlying physics engine: one worker thread owns the engine
// state, shared with the main thread via a single mutex over a small set
// of pending-edit and pending-readback collections, in the shape of
// AIStore's xact worker-thread pattern (xact/xs/tcb.go) generalized from
// a data-mover pump to a physics tick loop.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package physics

import (
	"github.com/google/uuid"

	"github.com/rezsim/rez/world"
)

// Category is the collision-filter bucket a tracked object falls into.
type Category uint8

const (
	CategoryAvatar Category = iota
	CategoryStaticPrim
	CategoryDynamicPrim
	CategoryGround
	CategorySimBorder
)

// collidesWith is the fixed collision-filter table.
var collidesWith = map[Category][]Category{
	CategoryAvatar:      {CategoryGround, CategorySimBorder, CategoryStaticPrim, CategoryDynamicPrim, CategoryAvatar},
	CategoryStaticPrim:  {CategoryAvatar, CategoryDynamicPrim},
	CategoryDynamicPrim: {CategoryGround, CategoryStaticPrim, CategoryDynamicPrim, CategoryAvatar},
	CategoryGround:      {CategoryAvatar, CategoryDynamicPrim},
	CategorySimBorder:   {CategoryAvatar},
}

// Collides reports whether a and b are configured to collide.
func Collides(a, b Category) bool {
	for _, c := range collidesWith[a] {
		if c == b {
			return true
		}
	}
	return false
}

// ShapeKind is the supported subset of constructible collision shapes.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeCylinder
	ShapePrism
	ShapeSphere
	ShapeTorus
	ShapeTube
	ShapeRing
	ShapeConvexHull
	ShapeCompound
)

// Shape is an engine-opaque description of one body's collision geometry;
// BuildShape (shapes.go) fills it in from a prim's ShapeParams.
type Shape struct {
	Kind ShapeKind

	// Native-primitive parameters (box/cylinder/sphere axis-aligned case).
	HalfExtents world.Vector3

	// Convex-hull sweep parameters, used when Kind == ShapeConvexHull.
	ProfilePoints []world.Vector3
	PathBegin     float64
	PathEnd       float64
	PathScaleXY   [2]float64
	PathShearXY   [2]float64

	// Compound members, used when Kind == ShapeCompound: one child
	// transform per linkset member prim, in linkset index order.
	Children []CompoundChild
}

// CompoundChild is one member shape of a compound (linkset) body.
type CompoundChild struct {
	Shape     Shape
	LocalPos  world.Vector3
	LocalRot  world.Quat
}

// PartMap orders the local ids of a linkset's root and children exactly
// as they appear in the compound shape's child list.
type PartMap []uint32

// Object is the physics-side record for one tracked body.
type Object struct {
	ID       uuid.UUID
	LocalID  uint32
	Category Category

	CurrentShape Shape
	NewShape     *Shape // non-nil when a shape swap is pending in `changed`

	Parts PartMap

	Pos world.Vector3
	Rot world.Quat

	Mass float64

	TargetVelocity   world.Vector3
	AccumImpulse     world.Vector3
	CurrentVelocity  world.Vector3

	Flying bool // avatars only

	ChildTransforms map[uint32]ChildTransform

	Deleting bool

	created bool // body exists in the engine

	lastSentPos world.Vector3
	lastSentRot world.Quat
}

// ChildTransform is a pending per-child transform update folded into a
// compound shape's next rebuild.
type ChildTransform struct {
	LocalPos world.Vector3
	LocalRot world.Quat
}

// CollisionPair is one {collider, collidee} pair recorded for a tick
// where both sides are tracked objects.
type CollisionPair struct {
	Collider uuid.UUID
	Collidee uuid.UUID
}

// Footfall is the grounding plane recorded for an avatar whose contact
// normal falls within 30 degrees of +Z.
type Footfall struct {
	Normal world.Vector3
	D      float64 // -n . point
}
