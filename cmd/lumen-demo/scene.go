package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen"
	"github.com/gekko3d/lumen/render/mesh"
	"github.com/gekko3d/lumen/render/scene"
)

// Spin turns its entity around the Y axis, in radians per second.
type Spin struct {
	Speed float32
}

type sceneModule struct{}

func (sceneModule) Install(app *lumen.App, cmd *lumen.Commands) {
	spawnScene(cmd)
	app.UseSystem(lumen.System(spinSystem).InStage(lumen.Update))
}

func material(r, g, b float32) *scene.Material {
	m := scene.NewMaterial()
	m.BaseColor = mgl32.Vec4{r, g, b, 1}
	m.CastShadows = true
	m.ReceiveShadows = true
	return m
}

func spawnScene(cmd *lumen.Commands) {
	camera := scene.NewCamera()
	camera.ClearColor = [4]float32{0.05, 0.06, 0.08, 1}
	camera.Culling = true
	cmd.AddEntity(
		camera,
		scene.NewTransform(mgl32.Vec3{0, 2, 8}),
		&lumen.FlyingCamera{Speed: 5, Sensitivity: 0.1},
	)

	sunTransform := scene.NewTransform(mgl32.Vec3{0, 10, 0})
	sunTransform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(60), mgl32.Vec3{1, 0, 0}).
		Mul(mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0}))
	sun := scene.NewDirectionalLight()
	sun.CastShadows = true
	cmd.AddEntity(sun, sunTransform)

	cmd.AddEntity(&scene.Skybox{SunPosition: mgl32.Vec3{0.3, 0.8, 0.5}})

	ground := material(0.4, 0.42, 0.45)
	ground.CastShadows = false
	cmd.AddEntity(scene.NewTransform(mgl32.Vec3{}), mesh.Plane(40), ground)

	for i := range 5 {
		angle := float64(i) * 2 * math.Pi / 5
		pos := mgl32.Vec3{float32(4 * math.Cos(angle)), 0.5, float32(4 * math.Sin(angle))}
		cmd.AddEntity(
			scene.NewTransform(pos),
			mesh.Cube(1),
			material(0.2+0.15*float32(i), 0.5, 0.9-0.15*float32(i)),
			&Spin{Speed: 0.5 + 0.25*float32(i)},
		)
	}

	glass := material(0.6, 0.8, 1)
	glass.BaseColor[3] = 0.4
	glass.Blend = true
	glass.CastShadows = false
	cmd.AddEntity(scene.NewTransform(mgl32.Vec3{0, 1, 0}), mesh.Cube(2), glass, &Spin{Speed: -0.3})

	// Expires after a few seconds; its buffers are released on removal.
	marker := material(1, 0.3, 0.2)
	marker.Unlit = true
	cmd.AddEntity(
		scene.NewTransform(mgl32.Vec3{0, 3, 0}),
		mesh.Cube(0.3),
		marker,
		&lumen.Lifetime{TimeLeft: 5},
	)
}

func spinSystem(t *lumen.Time, cmd *lumen.Commands) {
	dt := float32(t.Dt.Seconds())
	lumen.MakeQuery2[Spin, scene.Transform](cmd).Map(func(eid lumen.EntityId, s *Spin, tr *scene.Transform) bool {
		tr.Rotation = mgl32.QuatRotate(s.Speed*dt, mgl32.Vec3{0, 1, 0}).Mul(tr.Rotation).Normalize()
		return true
	})
}
