package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box as {min, max}.
type AABB [2]mgl32.Vec3

// EmptyAABB returns an inverted box that any Extend call replaces.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{{inf, inf, inf}, {-inf, -inf, -inf}}
}

func (b AABB) IsEmpty() bool {
	return b[0][0] > b[1][0] || b[0][1] > b[1][1] || b[0][2] > b[1][2]
}

func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b[0][i] = min(b[0][i], p[i])
		b[1][i] = max(b[1][i], p[i])
	}
	return b
}

func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o[0]).Extend(o[1])
}

func (b AABB) Center() mgl32.Vec3 {
	return b[0].Add(b[1]).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b[1].Sub(b[0])
}

func (b AABB) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b[0][0], b[0][1], b[0][2]},
		{b[1][0], b[0][1], b[0][2]},
		{b[0][0], b[1][1], b[0][2]},
		{b[1][0], b[1][1], b[0][2]},
		{b[0][0], b[0][1], b[1][2]},
		{b[1][0], b[0][1], b[1][2]},
		{b[0][0], b[1][1], b[1][2]},
		{b[1][0], b[1][1], b[1][2]},
	}
}

// Transform returns the box enclosing all eight transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.IsEmpty() {
		return b
	}
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out = out.Extend(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}
