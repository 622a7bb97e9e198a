package lumen

import (
	"github.com/gekko3d/lumen/render/scene"
)

// TransformModule derives model matrices, world positions and world bounds.
// Transforms are flat: there is no parent/child propagation.
type TransformModule struct{}

func (TransformModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(transformSystem).InStage(PostUpdate))
}

func transformSystem(cmd *Commands) {
	MakeQuery2[scene.Transform, scene.Geometry](cmd).Map(func(eid EntityId, t *scene.Transform, g *scene.Geometry) bool {
		scene.UpdateTransform(t, g)
		return true
	}, scene.Geometry{})
}

// CameraModule derives projection, view and frustum for every camera.
// With AutoAspect the aspect ratio follows the render viewport.
type CameraModule struct {
	AutoAspect bool
}

func (m CameraModule) Install(app *App, cmd *Commands) {
	if m.AutoAspect {
		app.UseSystem(System(cameraAspectSystem).InStage(PreRender))
	}
	app.UseSystem(System(cameraSystem).InStage(PreRender))
}

func cameraSystem(cmd *Commands) {
	MakeQuery2[scene.Camera, scene.Transform](cmd).Map(func(eid EntityId, c *scene.Camera, t *scene.Transform) bool {
		scene.UpdateCamera(c, t)
		return true
	}, scene.Transform{})
}

func cameraAspectSystem(rc *RenderContext, cmd *Commands) {
	w, h := rc.Device.Size()
	if rc.View != nil {
		w, h = rc.View.Viewport.Width(), rc.View.Viewport.Height()
	}
	if w <= 0 || h <= 0 {
		return
	}
	MakeQuery1[scene.Camera](cmd).Map(func(eid EntityId, c *scene.Camera) bool {
		c.Aspect = float32(w) / float32(h)
		return true
	})
}
