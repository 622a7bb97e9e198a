package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Frustum holds six planes (left, right, bottom, top, near, far) as Ax+By+Cz+D=0
// with normals pointing inside.
type Frustum [6]mgl32.Vec4

// ExtractFrustum derives normalised frustum planes from a view-projection matrix.
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	w := row(3)
	f := Frustum{
		w.Add(row(0)),
		w.Sub(row(0)),
		w.Add(row(1)),
		w.Sub(row(1)),
		w.Add(row(2)),
		w.Sub(row(2)),
	}
	for i := range f {
		p := f[i]
		length := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if length > 0 {
			f[i] = p.Mul(1 / length)
		}
	}
	return f
}

// AABBInFrustum tests, per plane, the corner farthest along the plane normal.
// The box is outside as soon as that corner is behind any plane.
func AABBInFrustum(box AABB, f Frustum) bool {
	for _, plane := range f {
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] >= 0 {
				p[axis] = box[1][axis]
			} else {
				p[axis] = box[0][axis]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}

// IsEntityInFrustum tests the entity's world bounds. Entities without a transform
// or with culling disabled on their geometry are always visible.
func IsEntityInFrustum(e *Entity, f Frustum) bool {
	if e.Geometry != nil && e.Geometry.SkipCulling {
		return true
	}
	if e.Transform == nil {
		return true
	}
	return AABBInFrustum(e.Transform.WorldBounds, f)
}

// CullEntities keeps the entities visible from camera. Entities without geometry always
// pass. When camera culling is off the input slice is returned as is.
func CullEntities(entities []*Entity, camera *Camera) []*Entity {
	if camera == nil || !camera.Culling {
		return entities
	}
	out := make([]*Entity, 0, len(entities))
	for _, e := range entities {
		if e.Geometry == nil || IsEntityInFrustum(e, camera.Frustum) {
			out = append(out, e)
		}
	}
	return out
}
