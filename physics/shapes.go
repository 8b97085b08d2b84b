package physics

import (
	"math"

	"github.com/rezsim/rez/world"
)

// profileCurve values mirror the wire-level profile-curve tags used by
// ShapeParams.ProfileCurve; only the subset needed to pick a polygon is
// named here.
const (
	profileSquare   uint8 = 0
	profileCircle   uint8 = 1
	profileTriangle uint8 = 3
)

// isAxisAlignedPrimitive reports whether a shape has no twist, hollow, or
// profile cut. It does not look at the shape kind; BuildShape checks for
// box/cylinder/sphere, the cases the engine can build as a native
// primitive instead of a swept convex hull.
func isAxisAlignedPrimitive(s world.ShapeParams) bool {
	noCut := s.ProfileBegin == 0 && s.ProfileEnd == 0 && s.Hollow == 0
	noTwist := s.TwistBegin == 0 && s.TwistEnd == 0
	return noCut && noTwist
}

// profilePolygon returns the 2D cross-section points for a profile curve:
// square (4 points), equilateral triangle (3 points), or circle (8-gon).
func profilePolygon(curve uint8) []world.Vector3 {
	switch curve {
	case profileTriangle:
		return regularPolygon(3)
	case profileCircle:
		return regularPolygon(8)
	default:
		return regularPolygon(4)
	}
}

func regularPolygon(n int) []world.Vector3 {
	pts := make([]world.Vector3, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = world.Vector3{X: math.Cos(theta) * 0.5, Y: math.Sin(theta) * 0.5}
	}
	return pts
}

// BuildShape constructs a collision Shape from a prim's dimensions and
// shape parameters. Perfect axis-aligned boxes/cylinders/spheres (no
// twist/hollow/profile-cut) use the engine's native primitives; anything
// else becomes a swept convex hull from a profile polygon, with
// path-begin/end, path-scale-xy, and path-shear-xy applied.
func BuildShape(curveKind ShapeKind, scale world.Vector3, s world.ShapeParams) Shape {
	if isAxisAlignedPrimitive(s) {
		switch curveKind {
		case ShapeBox, ShapeCylinder, ShapeSphere:
			return Shape{Kind: curveKind, HalfExtents: scale.Scale(0.5)}
		}
	}

	pathBegin := float64(s.PathBegin) / 50000
	pathEnd := float64(s.PathEnd) / 50000
	if pathEnd == 0 {
		pathEnd = 1
	}
	return Shape{
		Kind:          ShapeConvexHull,
		ProfilePoints: profilePolygon(s.ProfileCurve),
		PathBegin:     pathBegin,
		PathEnd:       pathEnd,
		PathScaleXY:   [2]float64{float64(s.ScaleX) / 100, float64(s.ScaleY) / 100},
		PathShearXY:   [2]float64{float64(s.ShearX) / 100, float64(s.ShearY) / 100},
		HalfExtents:   scale.Scale(0.5),
	}
}

// BuildCompound assembles a linkset into a single compound shape, one
// child entry per member prim in index order (root first).
func BuildCompound(members []CompoundChild) Shape {
	return Shape{Kind: ShapeCompound, Children: members}
}
