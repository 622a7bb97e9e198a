package lumen

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/scene"
)

type FlyingCameraModule struct{}

func (m FlyingCameraModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(flyingCameraInputSystem).InStage(Update))
	app.UseSystem(System(flyingCameraControlSystem).InStage(Update))
}

// FlyingCamera moves its entity's transform from WASD and mouse look.
// Yaw and Pitch are in degrees.
type FlyingCamera struct {
	Speed       float32
	Sensitivity float32
	Yaw, Pitch  float32
	Move        mgl32.Vec3
	Look        mgl32.Vec2
}

func flyingCameraInputSystem(in *Input, cmd *Commands) {
	if in.JustPressed[KeyTab] {
		in.MouseCaptured = !in.MouseCaptured
	}

	MakeQuery1[FlyingCamera](cmd).Map(func(eid EntityId, fly *FlyingCamera) bool {
		fly.Move = mgl32.Vec3{}
		axis := func(plus, minus Key) float32 {
			var v float32
			if in.Pressed[plus] {
				v++
			}
			if in.Pressed[minus] {
				v--
			}
			return v
		}
		fly.Move[0] = axis(KeyD, KeyA)
		fly.Move[1] = axis(KeySpace, KeyControl)
		fly.Move[2] = axis(KeyW, KeyS)

		fly.Look = mgl32.Vec2{}
		if in.MouseCaptured {
			fly.Look = mgl32.Vec2{float32(in.MouseDeltaX), float32(in.MouseDeltaY)}
		}
		return true
	})
}

func flyingCameraControlSystem(cmd *Commands, t *Time) {
	dt := float32(t.Dt.Seconds())
	if dt <= 0 {
		return
	}
	MakeQuery2[scene.Transform, FlyingCamera](cmd).Map(func(eid EntityId, tr *scene.Transform, fly *FlyingCamera) bool {
		fly.steer(tr, dt)
		return true
	})
}

// steer applies one frame of look and movement to the transform. The camera looks
// down -Z at zero yaw and pitch.
func (fly *FlyingCamera) steer(tr *scene.Transform, dt float32) {
	if fly.Sensitivity == 0 {
		fly.Sensitivity = 0.1
	}
	if fly.Speed == 0 {
		fly.Speed = 5
	}

	fly.Yaw -= fly.Look[0] * fly.Sensitivity
	fly.Pitch -= fly.Look[1] * fly.Sensitivity
	fly.Pitch = mgl32.Clamp(fly.Pitch, -89, 89)

	yaw := mgl32.QuatRotate(mgl32.DegToRad(fly.Yaw), mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(mgl32.DegToRad(fly.Pitch), mgl32.Vec3{1, 0, 0})
	tr.Rotation = yaw.Mul(pitch).Normalize()

	forward := tr.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
	right := tr.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
	up := mgl32.Vec3{0, 1, 0}

	move := right.Mul(fly.Move[0]).Add(up.Mul(fly.Move[1])).Add(forward.Mul(fly.Move[2]))
	if move.Len() > 0 {
		tr.Position = tr.Position.Add(move.Normalize().Mul(fly.Speed * dt))
	}
}
