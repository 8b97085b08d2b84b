package physics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/cmn/debug"
	"github.com/rezsim/rez/world"
)

// moveThreshold is the minimum pose change, in metres or the rotation's
// equivalent component delta, that triggers a main-thread position
// update.
const moveThreshold = 0.01

// groundedCosine is cos(30 degrees); a contact normal whose dot product
// with +Z exceeds this is treated as ground contact.
var groundedCosine = math.Cos(30 * math.Pi / 180)

// Manifold is one contact the engine reports after a step.
type Manifold struct {
	A, B   uuid.UUID
	Normal world.Vector3 // contact normal, pointing away from B
	Point  world.Vector3
}

// Engine is the underlying rigid-body simulator the bridge drives; its
// concrete binding (e.g. an ODE/Bullet/Jolt wrapper) is an external
// collaborator the bridge never assumes the shape of beyond this surface.
type Engine interface {
	AddBody(id uuid.UUID, shape Shape, pos world.Vector3, rot world.Quat, mass float64, category Category)
	RemoveBody(id uuid.UUID)
	UpdateShape(id uuid.UUID, shape Shape)
	SetTransform(id uuid.UUID, pos world.Vector3, rot world.Quat)
	ApplyImpulse(id uuid.UUID, impulse world.Vector3)
	SetGravityEnabled(id uuid.UUID, enabled bool)
	Step(dt time.Duration) []Manifold
	ReadPose(id uuid.UUID) (pos world.Vector3, rot world.Quat, vel world.Vector3)
}

// MoveCallback is invoked on the main thread once per tick for every
// tracked object whose pose changed beyond moveThreshold; it plays the
// role of world_move_obj_from_phys.
type MoveCallback func(id uuid.UUID, pos world.Vector3, rot world.Quat)

// Bridge owns the physics worker's shared state. The mutex guards
// `objects`, `physical`, `changed`, and the collision deque; the engine
// itself is only ever touched from the worker goroutine.
type Bridge struct {
	mu      sync.Mutex
	engine  Engine
	objects map[uuid.UUID]*Object
	physical map[uuid.UUID]bool
	changed  map[uuid.UUID]bool

	collisions []batch // deque of per-tick collision-pair batches

	grounded map[uuid.UUID]bool
	footfall map[uuid.UUID]Footfall
	groundedCount int64 // atomic

	onMove MoveCallback

	done chan struct{}
}

type batch struct {
	tick  int64
	pairs []CollisionPair
}

func NewBridge(engine Engine, onMove MoveCallback) *Bridge {
	return &Bridge{
		engine:   engine,
		objects:  make(map[uuid.UUID]*Object),
		physical: make(map[uuid.UUID]bool),
		changed:  make(map[uuid.UUID]bool),
		grounded: make(map[uuid.UUID]bool),
		footfall: make(map[uuid.UUID]Footfall),
		onMove:   onMove,
		done:     make(chan struct{}),
	}
}

// AddObject registers a tracked body and marks it changed so the next
// tick creates it in the engine. The pose it is registered with counts
// as the last one sent to the main thread.
func (b *Bridge) AddObject(o *Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o.lastSentPos, o.lastSentRot = o.Pos, o.Rot
	b.objects[o.ID] = o
	b.physical[o.ID] = true
	b.changed[o.ID] = true
}

// RemoveObject marks a tracked body for deletion on the next tick.
func (b *Bridge) RemoveObject(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.objects[id]; ok {
		o.Deleting = true
		b.changed[id] = true
	}
}

// SetShape queues a shape swap for the next tick.
func (b *Bridge) SetShape(id uuid.UUID, shape Shape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[id]
	if !ok {
		return
	}
	o.NewShape = &shape
	b.changed[id] = true
}

// SetTargetVelocity queues a target-velocity change for the next tick's
// avatar locomotion pass.
func (b *Bridge) SetTargetVelocity(id uuid.UUID, v world.Vector3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[id]
	if !ok {
		return
	}
	o.TargetVelocity = v
	b.changed[id] = true
}

// SetFlying toggles an avatar's fly flag; gravity follows it.
func (b *Bridge) SetFlying(id uuid.UUID, flying bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[id]
	if !ok {
		return
	}
	o.Flying = flying
	b.changed[id] = true
}

// GroundedCount is the running count of avatars currently grounded,
// exposed to the session/metrics layer.
func (b *Bridge) GroundedCount() int64 { return atomic.LoadInt64(&b.groundedCount) }

// Footfall returns the last recorded grounding plane for an avatar.
func (b *Bridge) Footfall(id uuid.UUID) (Footfall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.footfall[id]
	return f, ok
}

// Shutdown stops the tick loop after its current tick.
func (b *Bridge) Shutdown() { close(b.done) }

// Run drives the per-tick protocol at the given rate until Shutdown is
// called. Each tick blocks at most min(interval, 10ms) past the previous
// tick's deadline, matching the bounded-suspension rule for the physics
// worker.
func (b *Bridge) Run(interval time.Duration) {
	waitCap := 10 * time.Millisecond
	if interval < waitCap {
		waitCap = interval
	}
	ticker := time.NewTicker(waitCap)
	defer ticker.Stop()

	var tickNo int64
	last := time.Now()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			now := time.Now()
			if now.Sub(last) < interval {
				continue
			}
			last = now
			tickNo++
			b.tick(tickNo, interval)
		}
	}
}

// tick runs one full pass of the per-tick protocol: apply changed edits,
// step the engine, process collisions, read back poses, and invoke the
// main-thread move callback for significant changes.
func (b *Bridge) tick(tickNo int64, dt time.Duration) {
	b.applyChanged(dt)

	manifolds := b.engine.Step(dt)
	pairs := b.processCollisions(manifolds)

	b.mu.Lock()
	b.collisions = append(b.collisions, batch{tick: tickNo, pairs: pairs})
	b.mu.Unlock()

	b.readbackAndNotify()
}

// applyChanged locks the mutex, applies every queued edit (create/remove
// bodies, shape swaps with recomputed shapes, avatar locomotion impulses),
// then releases the mutex before stepping the engine.
func (b *Bridge) applyChanged(dt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.changed {
		o, ok := b.objects[id]
		if !ok {
			continue
		}
		if o.Deleting {
			b.engine.RemoveBody(id)
			delete(b.objects, id)
			delete(b.physical, id)
			delete(b.grounded, id)
			delete(b.footfall, id)
			continue
		}
		if !o.created {
			b.engine.AddBody(id, o.CurrentShape, o.Pos, o.Rot, o.Mass, o.Category)
			o.created = true
		} else if o.NewShape != nil {
			o.CurrentShape = *o.NewShape
			o.NewShape = nil
			b.engine.UpdateShape(id, o.CurrentShape)
		}
		if o.Category == CategoryAvatar {
			b.applyAvatarImpulse(o, dt)
			b.engine.SetGravityEnabled(id, !o.Flying)
		}
	}
	b.changed = make(map[uuid.UUID]bool)
}

// applyAvatarImpulse converts target_velocity into a central impulse
// (target - current) * 0.9 * mass, zeroing the vertical component unless
// the avatar is flying.
func (b *Bridge) applyAvatarImpulse(o *Object, _ time.Duration) {
	delta := o.TargetVelocity.Sub(o.CurrentVelocity)
	mass := o.Mass
	if mass <= 0 {
		mass = 1
	}
	impulse := delta.Scale(0.9 * mass)
	if !o.Flying {
		impulse.Z = 0
	}
	o.AccumImpulse = impulse
	b.engine.ApplyImpulse(o.ID, impulse)
}

// processCollisions walks contact manifolds, marking avatar grounding and
// recording footfall planes, and returns the {collider, collidee} pairs
// where both sides are tracked objects.
func (b *Bridge) processCollisions(manifolds []Manifold) []CollisionPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	stillGrounded := make(map[uuid.UUID]bool)
	var pairs []CollisionPair

	for _, m := range manifolds {
		a, aOK := b.objects[m.A]
		_, bOK := b.objects[m.B]
		if aOK && a.Category == CategoryAvatar {
			if dot := m.Normal.Dot(world.Vector3{Z: 1}); dot >= groundedCosine {
				stillGrounded[m.A] = true
				b.footfall[m.A] = Footfall{
					Normal: m.Normal,
					D:      -m.Normal.Dot(m.Point),
				}
			}
		}
		if aOK && bOK {
			pairs = append(pairs, CollisionPair{Collider: m.A, Collidee: m.B})
		}
	}

	for id, was := range b.grounded {
		if was && !stillGrounded[id] {
			atomic.AddInt64(&b.groundedCount, -1)
		}
	}
	for id, now := range stillGrounded {
		if now && !b.grounded[id] {
			atomic.AddInt64(&b.groundedCount, 1)
		}
	}
	b.grounded = stillGrounded

	return pairs
}

// readbackAndNotify reads pose/velocity for every physical body and
// invokes the main-thread move callback for any whose pose changed
// beyond moveThreshold since the last notification.
func (b *Bridge) readbackAndNotify() {
	b.mu.Lock()
	type move struct {
		id  uuid.UUID
		pos world.Vector3
		rot world.Quat
	}
	var moves []move
	for id := range b.physical {
		o, ok := b.objects[id]
		if !ok {
			continue
		}
		pos, rot, vel := b.engine.ReadPose(id)
		o.Pos, o.Rot, o.CurrentVelocity = pos, rot, vel
		if pos.Dist(o.lastSentPos) >= moveThreshold || quatDelta(rot, o.lastSentRot) >= moveThreshold {
			o.lastSentPos, o.lastSentRot = pos, rot
			moves = append(moves, move{id, pos, rot})
		}
	}
	b.mu.Unlock()

	if b.onMove == nil {
		return
	}
	for _, m := range moves {
		b.onMove(m.id, m.pos, m.rot)
	}
}

func quatDelta(a, b world.Quat) float64 {
	dx, dy, dz, dw := a.X-b.X, a.Y-b.Y, a.Z-b.Z, a.W-b.W
	return math.Sqrt(dx*dx + dy*dy + dz*dz + dw*dw)
}

// DrainCollisions pops every collision-pair batch accumulated since the
// last call, oldest first.
func (b *Bridge) DrainCollisions() [][]CollisionPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]CollisionPair, len(b.collisions))
	for i, bt := range b.collisions {
		out[i] = bt.pairs
	}
	b.collisions = nil
	debug.Assert(len(b.collisions) == 0)
	return out
}
