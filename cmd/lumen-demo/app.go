package main

import (
	"github.com/gekko3d/lumen"
	"github.com/gekko3d/lumen/config"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/mesh"
	"github.com/gekko3d/lumen/render/skybox"
)

// newApp returns an app with only logging installed, so the logger is available
// while the window and device are created.
func newApp(cfg *config.Config) *lumen.App {
	return lumen.NewApp().UseModules(lumen.LoggingModule{
		Prefix: cfg.Log.Prefix,
		Level:  cfg.Log.Level,
	})
}

// installDemo wires the engine modules, the mesh and sky renderers and the demo scene.
func installDemo(app *lumen.App, cfg *config.Config, device gpu.Device, poll lumen.InputPoller) *lumen.RenderContext {
	app.UseModules(
		lumen.TimeModule{},
		lumen.InputModule{Poll: poll},
		lumen.FlyingCameraModule{},
		lumen.LifecycleModule{},
		lumen.TransformModule{},
		lumen.LightModule{},
		lumen.RenderPipelineModule{Device: device, Config: cfg},
		lumen.CameraModule{AutoAspect: true},
		sceneModule{},
	)

	rc, _ := lumen.Resource[lumen.RenderContext](app)
	rc.Renderers = append(rc.Renderers,
		mesh.New(rc.Device, rc.Cache, mesh.WithLogger(app.Logger())),
		skybox.NewRenderer(rc.Device, rc.Cache, app.Logger()),
	)
	return rc
}
