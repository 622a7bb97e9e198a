package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	yUp = mgl32.Vec3{0, 1, 0}
	zUp = mgl32.Vec3{0, 0, 1}
)

// UpdateTransform derives the model matrix, world position and world bounds.
// geometry may be nil.
func UpdateTransform(t *Transform, geometry *Geometry) {
	translate := mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	rotate := t.Rotation.Normalize().Mat4()
	scale := mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	t.ModelMatrix = translate.Mul4(rotate).Mul4(scale)
	t.WorldPosition = t.ModelMatrix.Col(3).Vec3()

	local := AABB{}
	if geometry != nil {
		local = geometry.LocalBounds()
	}
	t.WorldBounds = local.Transform(t.ModelMatrix)
	t.Updated = true
}

// UpdateCamera derives projection, view and frustum. transform may be nil, in which
// case the camera sits at the origin looking down -Z.
func UpdateCamera(c *Camera, transform *Transform) {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	switch c.Projection {
	case ProjectionOrthographic:
		c.ProjectionMatrix = mgl32.Ortho(c.Left*aspect, c.Right*aspect, c.Bottom, c.Top, c.Near, c.Far)
	default:
		c.ProjectionMatrix = mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
	}
	if transform != nil && transform.Updated {
		c.ViewMatrix = transform.ModelMatrix.Inv()
	} else {
		c.ViewMatrix = mgl32.Ident4()
	}
	c.Frustum = ExtractFrustum(c.ProjectionMatrix.Mul4(c.ViewMatrix))
	c.Ready = true
}

// UpdateLight marks the light's matrices ready and, when a transform is present,
// points the light along its transformed +Z axis.
func UpdateLight(l *LightBase, transform *Transform) {
	l.Matrices.Ready = true
	if transform == nil {
		return
	}
	dir := transform.ModelMatrix.Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3()
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, 0, 1}
	}
	dir = dir.Normalize()
	l.Matrices.Direction = dir
	l.Matrices.View = LookAt(transform.WorldPosition, transform.WorldPosition.Add(dir))
}

// LookAt is mgl32.LookAtV with a Y-up vector, switching to Z-up when looking straight
// up or down.
func LookAt(eye, target mgl32.Vec3) mgl32.Mat4 {
	up := yUp
	if dir := target.Sub(eye); dir.Len() > 0 && float32(math.Abs(float64(dir.Normalize().Dot(yUp)))) > 0.999 {
		up = zUp
	}
	return mgl32.LookAtV(eye, target, up)
}
