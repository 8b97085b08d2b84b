package physics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/world"
)

func TestKinematicEngineSettlesOnGroundPlane(t *testing.T) {
	e := NewKinematicEngine(0)
	id := uuid.New()
	shape := Shape{Kind: ShapeBox, HalfExtents: world.Vector3{X: 0.5, Y: 0.5, Z: 0.5}}
	e.AddBody(id, shape, world.Vector3{X: 0, Y: 0, Z: 10}, world.IdentityQuat(), 1, CategoryAvatar)

	var manifolds []Manifold
	for i := 0; i < 1000; i++ {
		manifolds = e.Step(16 * time.Millisecond)
		if len(manifolds) > 0 {
			break
		}
	}
	if len(manifolds) == 0 {
		t.Fatalf("expected the body to settle on the ground plane within 1000 steps")
	}
	pos, _, vel := e.ReadPose(id)
	if pos.Z != 0.5 {
		t.Fatalf("settled Z = %v, want 0.5 (ground + half-extent)", pos.Z)
	}
	if vel.Z != 0 {
		t.Fatalf("settled vertical velocity = %v, want 0", vel.Z)
	}
}

func TestKinematicEngineApplyImpulseScalesByInverseMass(t *testing.T) {
	e := NewKinematicEngine(-1000) // push the ground away so gravity doesn't interfere
	id := uuid.New()
	e.AddBody(id, Shape{}, world.Vector3{}, world.IdentityQuat(), 2, CategoryDynamicPrim)
	e.SetGravityEnabled(id, false)

	e.ApplyImpulse(id, world.Vector3{X: 4, Y: 0, Z: 0})
	_, _, vel := e.ReadPose(id)
	if vel.X != 2 {
		t.Fatalf("velocity.X = %v, want 2 (impulse 4 / mass 2)", vel.X)
	}
}

func TestKinematicEngineRemoveBodyStopsTracking(t *testing.T) {
	e := NewKinematicEngine(0)
	id := uuid.New()
	e.AddBody(id, Shape{}, world.Vector3{X: 1, Y: 2, Z: 3}, world.IdentityQuat(), 1, CategoryAvatar)
	e.RemoveBody(id)

	pos, _, _ := e.ReadPose(id)
	if pos != (world.Vector3{}) {
		t.Fatalf("ReadPose after RemoveBody = %+v, want zero value", pos)
	}
}
