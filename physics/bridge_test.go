package physics

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/world"
)

type fakeEngine struct {
	mu        sync.Mutex
	added     map[uuid.UUID]bool
	removed   map[uuid.UUID]bool
	impulses  map[uuid.UUID]world.Vector3
	gravity   map[uuid.UUID]bool
	poses     map[uuid.UUID]world.Vector3
	manifolds []Manifold
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		added:    make(map[uuid.UUID]bool),
		removed:  make(map[uuid.UUID]bool),
		impulses: make(map[uuid.UUID]world.Vector3),
		gravity:  make(map[uuid.UUID]bool),
		poses:    make(map[uuid.UUID]world.Vector3),
	}
}

func (e *fakeEngine) AddBody(id uuid.UUID, shape Shape, pos world.Vector3, rot world.Quat, mass float64, category Category) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added[id] = true
	e.poses[id] = pos
}

func (e *fakeEngine) RemoveBody(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed[id] = true
}

func (e *fakeEngine) UpdateShape(id uuid.UUID, shape Shape) {}

func (e *fakeEngine) SetTransform(id uuid.UUID, pos world.Vector3, rot world.Quat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.poses[id] = pos
}

func (e *fakeEngine) ApplyImpulse(id uuid.UUID, impulse world.Vector3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.impulses[id] = impulse
}

func (e *fakeEngine) SetGravityEnabled(id uuid.UUID, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gravity[id] = enabled
}

func (e *fakeEngine) Step(dt time.Duration) []Manifold {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifolds
}

func (e *fakeEngine) ReadPose(id uuid.UUID) (world.Vector3, world.Quat, world.Vector3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.poses[id], world.IdentityQuat(), world.Vector3{}
}

func TestCollisionFilterTable(t *testing.T) {
	cases := []struct {
		a, b Category
		want bool
	}{
		{CategoryAvatar, CategoryGround, true},
		{CategoryAvatar, CategoryAvatar, true},
		{CategoryStaticPrim, CategoryStaticPrim, false},
		{CategoryStaticPrim, CategoryDynamicPrim, true},
		{CategoryGround, CategoryStaticPrim, false},
		{CategorySimBorder, CategoryStaticPrim, false},
		{CategorySimBorder, CategoryAvatar, true},
	}
	for _, c := range cases {
		if got := Collides(c.a, c.b); got != c.want {
			t.Errorf("Collides(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestApplyChangedCreatesAndRemovesBodies(t *testing.T) {
	engine := newFakeEngine()
	b := NewBridge(engine, nil)

	id := uuid.New()
	b.AddObject(&Object{ID: id, Category: CategoryStaticPrim, Mass: 1})
	b.applyChanged(time.Second / 45)
	if !engine.added[id] {
		t.Fatalf("expected body added to engine")
	}

	b.RemoveObject(id)
	b.applyChanged(time.Second / 45)
	if !engine.removed[id] {
		t.Fatalf("expected body removed from engine")
	}
	if _, ok := b.objects[id]; ok {
		t.Fatalf("expected object record dropped after removal")
	}
}

func TestAvatarImpulseZeroesVerticalWhenNotFlying(t *testing.T) {
	engine := newFakeEngine()
	b := NewBridge(engine, nil)
	id := uuid.New()
	o := &Object{ID: id, Category: CategoryAvatar, Mass: 2, TargetVelocity: world.Vector3{X: 1, Y: 0, Z: 5}}
	b.AddObject(o)
	b.applyChanged(time.Second / 45)

	imp := engine.impulses[id]
	if imp.Z != 0 {
		t.Fatalf("expected vertical impulse zeroed when not flying, got %+v", imp)
	}
	if imp.X != 1*0.9*2 {
		t.Fatalf("expected horizontal impulse (target-current)*0.9*mass, got %+v", imp)
	}
	if engine.gravity[id] != true {
		t.Fatalf("expected gravity enabled for a non-flying avatar")
	}
}

func TestAvatarImpulseKeepsVerticalWhenFlying(t *testing.T) {
	engine := newFakeEngine()
	b := NewBridge(engine, nil)
	id := uuid.New()
	o := &Object{ID: id, Category: CategoryAvatar, Mass: 1, Flying: true, TargetVelocity: world.Vector3{Z: 3}}
	b.AddObject(o)
	b.applyChanged(time.Second / 45)

	if engine.impulses[id].Z != 3*0.9 {
		t.Fatalf("expected vertical impulse preserved when flying, got %+v", engine.impulses[id])
	}
	if engine.gravity[id] != false {
		t.Fatalf("expected gravity disabled while flying")
	}
}

func TestProcessCollisionsMarksGroundingWithinThirtyDegrees(t *testing.T) {
	engine := newFakeEngine()
	b := NewBridge(engine, nil)
	avatarID, groundID := uuid.New(), uuid.New()
	b.AddObject(&Object{ID: avatarID, Category: CategoryAvatar})
	b.AddObject(&Object{ID: groundID, Category: CategoryGround})
	b.applyChanged(time.Second / 45)

	pairs := b.processCollisions([]Manifold{
		{A: avatarID, B: groundID, Normal: world.Vector3{Z: 1}, Point: world.Vector3{X: 1, Y: 2, Z: 0}},
	})
	if len(pairs) != 1 {
		t.Fatalf("expected one tracked collision pair, got %d", len(pairs))
	}
	if b.GroundedCount() != 1 {
		t.Fatalf("expected grounded count 1, got %d", b.GroundedCount())
	}
	ff, ok := b.Footfall(avatarID)
	if !ok {
		t.Fatalf("expected a footfall record")
	}
	if ff.D != 0 {
		t.Fatalf("expected footfall d = -n.point = 0 for a ground-level contact, got %v", ff.D)
	}
}

func TestProcessCollisionsIgnoresSteepNormals(t *testing.T) {
	engine := newFakeEngine()
	b := NewBridge(engine, nil)
	avatarID, wallID := uuid.New(), uuid.New()
	b.AddObject(&Object{ID: avatarID, Category: CategoryAvatar})
	b.AddObject(&Object{ID: wallID, Category: CategoryStaticPrim})
	b.applyChanged(time.Second / 45)

	b.processCollisions([]Manifold{
		{A: avatarID, B: wallID, Normal: world.Vector3{X: 1}, Point: world.Vector3{}},
	})
	if b.GroundedCount() != 0 {
		t.Fatalf("expected a sideways-facing normal to not count as grounded")
	}
}

func TestReadbackNotifiesOnlyBeyondThreshold(t *testing.T) {
	engine := newFakeEngine()
	var moved []uuid.UUID
	b := NewBridge(engine, func(id uuid.UUID, pos world.Vector3, rot world.Quat) {
		moved = append(moved, id)
	})
	id := uuid.New()
	b.AddObject(&Object{ID: id, Category: CategoryDynamicPrim, Rot: world.IdentityQuat()})
	b.applyChanged(time.Second / 45)

	engine.poses[id] = world.Vector3{X: 0.001}
	b.readbackAndNotify()
	if len(moved) != 0 {
		t.Fatalf("expected sub-threshold movement to not notify, got %v", moved)
	}

	engine.poses[id] = world.Vector3{X: 1}
	b.readbackAndNotify()
	if len(moved) != 1 {
		t.Fatalf("expected above-threshold movement to notify once, got %v", moved)
	}
}

func TestBuildShapeUsesNativePrimitiveWhenUncut(t *testing.T) {
	shape := BuildShape(ShapeBox, world.Vector3{X: 2, Y: 2, Z: 2}, world.ShapeParams{})
	if shape.Kind != ShapeBox {
		t.Fatalf("expected native box shape, got %v", shape.Kind)
	}
	if shape.HalfExtents != (world.Vector3{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("expected half-extents of scale/2, got %+v", shape.HalfExtents)
	}
}

func TestBuildShapeSweepsConvexHullWhenCutOrTwisted(t *testing.T) {
	shape := BuildShape(ShapeBox, world.Vector3{X: 1, Y: 1, Z: 1}, world.ShapeParams{Hollow: 10000, ProfileCurve: profileTriangle})
	if shape.Kind != ShapeConvexHull {
		t.Fatalf("expected swept convex hull for a hollow shape, got %v", shape.Kind)
	}
	if len(shape.ProfilePoints) != 3 {
		t.Fatalf("expected a 3-point triangle profile, got %d points", len(shape.ProfilePoints))
	}
}
