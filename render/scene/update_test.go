package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTransform(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{1, 2, 3})
	tr.Scale = mgl32.Vec3{2, 2, 2}
	geo := &Geometry{Bounds: AABB{{-1, -1, -1}, {1, 1, 1}}}

	UpdateTransform(tr, geo)

	require.True(t, tr.Updated)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, tr.WorldPosition)
	assert.Equal(t, AABB{{-1, 0, 1}, {3, 4, 5}}, tr.WorldBounds)
}

func TestUpdateTransformDerivesBoundsFromPositions(t *testing.T) {
	tests := []struct {
		name     string
		geometry *Geometry
		want     AABB
	}{
		{
			name:     "positions without bounds",
			geometry: &Geometry{Positions: []float32{-50, -50, 0, 50, -50, 0, 50, 50, 0, -50, 50, 0}},
			want:     AABB{{-50, -50, 0}, {50, 50, 0}},
		},
		{
			name: "explicit bounds win",
			geometry: &Geometry{
				Positions: []float32{-50, -50, 0, 50, 50, 0},
				Bounds:    AABB{{-1, -1, -1}, {1, 1, 1}},
			},
			want: AABB{{-1, -1, -1}, {1, 1, 1}},
		},
		{
			name:     "no positions",
			geometry: &Geometry{Count: 3},
			want:     AABB{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransform(mgl32.Vec3{})
			UpdateTransform(tr, tt.geometry)
			assert.Equal(t, tt.want, tr.WorldBounds)
		})
	}
}

func TestLargeQuadOffOriginStaysVisible(t *testing.T) {
	quad := &Geometry{Positions: []float32{-50, -50, 0, 50, -50, 0, 50, 50, 0, -50, 50, 0}}
	tr := NewTransform(mgl32.Vec3{})
	UpdateTransform(tr, quad)

	camera := NewCamera()
	camera.Culling = true
	UpdateCamera(camera, NewTransform(mgl32.Vec3{20, 0, 10}))

	e := &Entity{ID: 1, Transform: tr, Geometry: quad}
	assert.True(t, IsEntityInFrustum(e, camera.Frustum))
	assert.Len(t, CullEntities([]*Entity{e}, camera), 1)
}

func TestUpdateLightDirection(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{0, 5, 0})
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	UpdateTransform(tr, nil)

	light := NewDirectionalLight()
	UpdateLight(&light.LightBase, tr)

	require.True(t, light.Matrices.Ready)
	dir := light.Matrices.Direction
	assert.InDelta(t, 1, dir[0], 1e-5)
	assert.InDelta(t, 0, dir[1], 1e-5)
	assert.InDelta(t, 0, dir[2], 1e-5)

	// The light looks down its own -Z in view space.
	target := light.Matrices.View.Mul4x1(tr.WorldPosition.Add(dir).Vec4(1))
	assert.InDelta(t, -1, target[2], 1e-5)
}

func TestUpdateLightWithoutTransform(t *testing.T) {
	light := NewPointLight()
	UpdateLight(&light.LightBase, nil)

	assert.True(t, light.Matrices.Ready)
	assert.Equal(t, mgl32.Mat4{}, light.Matrices.View)
}

func TestLookAtStraightDown(t *testing.T) {
	m := LookAt(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 0, 0})
	for _, v := range m {
		assert.False(t, math.IsNaN(float64(v)), "matrix contains NaN")
	}
}

func TestEntityLights(t *testing.T) {
	e := &Entity{SpotLight: NewSpotLight(), DirectionalLight: NewDirectionalLight()}
	lights := e.Lights()
	require.Len(t, lights, 2)
	assert.Same(t, &e.DirectionalLight.LightBase, lights[0].Base())
	assert.Same(t, &e.SpotLight.LightBase, lights[1].Base())

	spot := NewSpotLight()
	assert.InDelta(t, 0.785398, spot.Angle, 1e-5)
	assert.Equal(t, float32(10), spot.Range)
}
