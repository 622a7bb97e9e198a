package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func lookDownNegZ() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	return ExtractFrustum(proj.Mul4(view))
}

func TestAABBInFrustum(t *testing.T) {
	frustum := lookDownNegZ()

	tests := []struct {
		name     string
		box      AABB
		expected bool
	}{
		{"inside", AABB{{-1, -1, -10}, {1, 1, -5}}, true},
		{"outside left", AABB{{-20, -1, -10}, {-15, 1, -5}}, false},
		{"outside right", AABB{{15, -1, -10}, {20, 1, -5}}, false},
		{"behind near plane", AABB{{-1, -1, 2}, {1, 1, 5}}, false},
		{"beyond far plane", AABB{{-1, -1, -200}, {1, 1, -150}}, false},
		{"intersecting left plane", AABB{{-15, -1, -10}, {-5, 1, -5}}, true},
		{"encompassing", AABB{{-1000, -1000, -1000}, {1000, 1000, 1000}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AABBInFrustum(tc.box, frustum))
		})
	}
}

func TestExtractFrustumOrtho(t *testing.T) {
	proj := mgl32.Ortho(-10, 10, -10, 10, 0, 20)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	frustum := ExtractFrustum(proj.Mul4(view))

	assert.True(t, AABBInFrustum(AABB{{-1, -1, -6}, {1, 1, -4}}, frustum))
	assert.False(t, AABBInFrustum(AABB{{-1, -1, -26}, {1, 1, -24}}, frustum), "far plane sits at z=-20")

	for i, p := range frustum {
		assert.InDelta(t, 1, p.Vec3().Len(), 1e-5, "plane %d is not normalised", i)
	}
}

func cubeEntity(id EntityID, pos mgl32.Vec3) *Entity {
	e := &Entity{
		ID:        id,
		Transform: NewTransform(pos),
		Geometry:  &Geometry{Bounds: AABB{{-1, -1, -1}, {1, 1, 1}}},
	}
	UpdateTransform(e.Transform, e.Geometry)
	return e
}

func TestIsEntityInFrustum(t *testing.T) {
	frustum := lookDownNegZ()

	visible := cubeEntity(1, mgl32.Vec3{0, 0, -10})
	hidden := cubeEntity(2, mgl32.Vec3{0, 0, 10})
	skipped := cubeEntity(3, mgl32.Vec3{0, 0, 10})
	skipped.Geometry.SkipCulling = true
	noTransform := &Entity{ID: 4, Geometry: &Geometry{}}

	assert.True(t, IsEntityInFrustum(visible, frustum))
	assert.False(t, IsEntityInFrustum(hidden, frustum))
	assert.True(t, IsEntityInFrustum(skipped, frustum))
	assert.True(t, IsEntityInFrustum(noTransform, frustum))
}

func TestCullEntities(t *testing.T) {
	cam := NewCamera()
	cam.FOV = mgl32.DegToRad(90)
	cam.Near = 1
	cam.Far = 100
	UpdateCamera(cam, nil)

	visible := cubeEntity(1, mgl32.Vec3{0, 0, -10})
	hidden := cubeEntity(2, mgl32.Vec3{0, 0, 10})
	light := &Entity{ID: 3, Transform: NewTransform(mgl32.Vec3{0, 0, 50}), DirectionalLight: NewDirectionalLight()}
	entities := []*Entity{visible, hidden, light}

	t.Run("culling disabled returns everything", func(t *testing.T) {
		cam.Culling = false
		assert.Equal(t, entities, CullEntities(entities, cam))
	})

	t.Run("culling enabled drops geometry outside", func(t *testing.T) {
		cam.Culling = true
		assert.Equal(t, []*Entity{visible, light}, CullEntities(entities, cam))
	})
}

func TestAABBTransform(t *testing.T) {
	box := AABB{{-1, -1, -1}, {1, 1, 1}}
	m := mgl32.Translate3D(5, 0, 0).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(45)))

	out := box.Transform(m)
	half := float32(1.41421356)
	assert.InDelta(t, 5-half, out[0][0], 1e-4)
	assert.InDelta(t, 5+half, out[1][0], 1e-4)
	assert.InDelta(t, -1, out[0][1], 1e-4)
	assert.InDelta(t, half, out[1][2], 1e-4)

	assert.True(t, EmptyAABB().IsEmpty())
	assert.Equal(t, box, EmptyAABB().Union(box))
}
