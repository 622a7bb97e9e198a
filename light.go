package lumen

import (
	"github.com/gekko3d/lumen/render/scene"
)

// LightModule points every light along its transformed +Z axis and marks its matrices
// ready for shadow mapping. Run it after TransformModule.
type LightModule struct{}

func (LightModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(lightSystem).InStage(PreRender))
}

func lightSystem(cmd *Commands) {
	MakeQuery2[scene.DirectionalLight, scene.Transform](cmd).Map(func(eid EntityId, l *scene.DirectionalLight, t *scene.Transform) bool {
		scene.UpdateLight(&l.LightBase, t)
		return true
	}, scene.Transform{})
	MakeQuery2[scene.PointLight, scene.Transform](cmd).Map(func(eid EntityId, l *scene.PointLight, t *scene.Transform) bool {
		scene.UpdateLight(&l.LightBase, t)
		return true
	}, scene.Transform{})
	MakeQuery2[scene.SpotLight, scene.Transform](cmd).Map(func(eid EntityId, l *scene.SpotLight, t *scene.Transform) bool {
		scene.UpdateLight(&l.LightBase, t)
		return true
	}, scene.Transform{})
	MakeQuery2[scene.AreaLight, scene.Transform](cmd).Map(func(eid EntityId, l *scene.AreaLight, t *scene.Transform) bool {
		scene.UpdateLight(&l.LightBase, t)
		return true
	}, scene.Transform{})
}
