// Package world is the entity/relationship store for prims, linksets,
// avatars, attachments, and their spatial index.
//
// Grounded on AIStore's handle-addressed entity convention: it addresses
// every object by a stable bucket/object name (core.LOM) plus an ephemeral
// runtime cache, never by raw owning pointer; rez mirrors that here —
// prims and avatars are addressed by uuid.UUID, parent/child edges are id
// fields, and *World* is the sole owner of the backing maps.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package world

import (
	"math"

	"github.com/google/uuid"
)

type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vector3) Dot(o Vector3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector3) Len() float64          { return math.Sqrt(v.Dot(v)) }

func (v Vector3) Dist(o Vector3) float64 { return v.Sub(o).Len() }

type Quat struct {
	X, Y, Z, W float64
}

func IdentityQuat() Quat { return Quat{0, 0, 0, 1} }

// RotateVector rotates v by quaternion q (q * v * q^-1), used to derive
// world_pos from a parent prim's frame.
func (q Quat) RotateVector(v Vector3) Vector3 {
	// standard quaternion-vector rotation via the cross-product form
	u := Vector3{q.X, q.Y, q.Z}
	s := q.W
	uDotV := u.Dot(v)
	uDotU := u.Dot(u)
	cross := Vector3{
		u.Y*v.Z - u.Z*v.Y,
		u.Z*v.X - u.X*v.Z,
		u.X*v.Y - u.Y*v.X,
	}
	// v' = 2*(u·v)*u + (s*s - u·u)*v + 2*s*(u×v)
	a := u.Scale(2 * uDotV)
	b := v.Scale(s*s - uDotU)
	c := cross.Scale(2 * s)
	return a.Add(b).Add(c)
}

// ObjectKind is the tagged-variant discriminator the design notes call for
// in place of an enum+switch pattern: operations applying to either variant
// dispatch on Kind.
type ObjectKind uint8

const (
	KindPrim ObjectKind = iota
	KindAvatar
)

// ParentKind distinguishes whether an object is parented to a prim (another
// member of a linkset) or to an avatar (the attachment case).
type ParentKind uint8

const (
	ParentNone ParentKind = iota
	ParentPrim
	ParentAvatar
)

// Base is the common Object header embedded by Prim and Avatar.
type Base struct {
	ID      uuid.UUID
	LocalID uint32
	Kind    ObjectKind

	WorldPos Vector3
	LocalPos Vector3
	Scale    Vector3
	Rot      Quat
	Vel      Vector3

	ParentID   uuid.UUID
	ParentKind ParentKind
	HasParent  bool

	Physical bool // whether a physics record backs this object
	Phantom  bool
}

// DeriveWorldPos recomputes WorldPos from a parent frame: world_pos is
// parent.world_pos + parent.rot*local_pos when parented to a prim, and
// equals parent.world_pos when parented to an avatar (the attachment
// case).
func (b *Base) DeriveWorldPos(parentWorldPos Vector3, parentRot Quat) {
	switch b.ParentKind {
	case ParentPrim:
		b.WorldPos = parentWorldPos.Add(parentRot.RotateVector(b.LocalPos))
	case ParentAvatar:
		b.WorldPos = parentWorldPos
	default:
		b.WorldPos = b.LocalPos
	}
}
