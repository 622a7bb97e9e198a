package lumen

import (
	"errors"
	"fmt"

	"github.com/gekko3d/lumen/config"
	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/pipeline"
	"github.com/gekko3d/lumen/render/scene"
	"github.com/gekko3d/lumen/render/skybox"
)

const rendererName = "lumen"

// RenderPipelineModule runs the skybox system and the render pipeline over the ECS
// world in the Render stage. Renderers are checked for the pipeline's hook interfaces.
type RenderPipelineModule struct {
	Device    gpu.Device
	Config    *config.Config
	Renderers []pipeline.Renderer
	Offscreen bool
}

// RenderContext is the resource holding the frame machinery.
type RenderContext struct {
	Device    gpu.Device
	Cache     *cache.Cache
	Graph     *graph.Graph
	Pipeline  *pipeline.RenderPipeline
	Skybox    *skybox.System
	Renderers []pipeline.Renderer
	Offscreen bool

	// View overrides the default camera view when set.
	View *scene.RenderView
	// Attachments are the main pass outputs of the last frame.
	Attachments *pipeline.Attachments

	log            Logger
	warnedNoCamera bool
}

type presenter interface {
	Present()
}

// entityDisposer is implemented by renderers that hold per-entity GPU resources.
type entityDisposer interface {
	Dispose(entities []*scene.Entity) error
}

func (m RenderPipelineModule) Install(app *App, cmd *Commands) {
	if m.Device == nil {
		panic("RenderPipelineModule: Device is nil")
	}
	ensureSingleRenderer(app, rendererName)

	cfg := m.Config
	if cfg == nil {
		cfg = config.Default()
	}
	rc := NewRenderContext(m.Device, cfg, app.Logger())
	rc.Renderers = m.Renderers
	rc.Offscreen = m.Offscreen

	app.addResources(rc)
	app.UseSystem(System(renderSystem).InStage(Render))
	app.OnRemove(func(eid EntityId, components []any) {
		if err := rc.Dispose([]*scene.Entity{entityFromComponents(eid, components)}); err != nil {
			rc.log.Errorf("dispose entity %d: %v", eid, err)
		}
	})
}

// NewRenderContext wires cache, graph, descriptors, pipeline and skybox for a device.
func NewRenderContext(device gpu.Device, cfg *config.Config, log Logger) *RenderContext {
	c := cache.New(device,
		cache.WithTextureRetention(cfg.Cache.TextureRetention),
		cache.WithPipelineRetention(cfg.Cache.PipelineRetention),
		cache.WithPassRetention(cfg.Cache.PassRetention),
		cache.WithLogger(log),
	)
	g := graph.New(
		graph.WithRetainer(c),
		graph.WithDevice(device),
		graph.WithReorder(cfg.Pipeline.Reorder),
		graph.WithLogger(log),
	)
	outputs := make([]pipeline.Output, 0, len(cfg.Pipeline.Outputs))
	for _, o := range cfg.Pipeline.Outputs {
		outputs = append(outputs, pipeline.Output(o))
	}
	p := pipeline.New(device, c, g,
		pipeline.WithDescriptors(descriptors.New(descriptors.WithShadowMapSize(cfg.Shadows.MapSize))),
		pipeline.WithOutputs(outputs...),
		pipeline.WithDebug(cfg.Pipeline.Debug),
		pipeline.WithLogger(log),
	)
	return &RenderContext{
		Device:   device,
		Cache:    c,
		Graph:    g,
		Pipeline: p,
		Skybox:   skybox.New(device, c, g, log),
		log:      log,
	}
}

func renderSystem(rc *RenderContext, cmd *Commands) error {
	return rc.Frame(SceneEntities(cmd))
}

// Frame renders one frame: sky textures, the pipeline's passes, graph execution and
// the cache sweep. A missing camera is warned about once and skips the pipeline. When
// recording fails the frame's passes are discarded rather than run partially.
func (rc *RenderContext) Frame(entities []*scene.Entity) error {
	rc.Cache.BeginFrame()
	rc.Graph.BeginFrame()

	var errs []error
	if err := rc.Skybox.Update(entities); err != nil {
		errs = append(errs, err)
	}

	att, err := rc.Pipeline.Update(entities, pipeline.Options{
		RenderView: rc.View,
		Renderers:  rc.Renderers,
		Offscreen:  rc.Offscreen,
	})
	switch {
	case errors.Is(err, pipeline.ErrNoCamera):
		if !rc.warnedNoCamera {
			rc.log.Warnf("render: no camera entity, add one with a scene.Camera component")
			rc.warnedNoCamera = true
		}
	case err != nil:
		errs = append(errs, err)
	default:
		rc.warnedNoCamera = false
		rc.Attachments = att
	}

	if len(errs) > 0 {
		rc.Graph.Discard()
		rc.Skybox.Invalidate()
	} else if err := rc.Graph.EndFrame(); err != nil {
		errs = append(errs, err)
	}
	if err := rc.Cache.EndFrame(); err != nil {
		errs = append(errs, err)
	}
	if p, ok := rc.Device.(presenter); ok && !rc.Offscreen && len(errs) == 0 {
		p.Present()
	}
	if len(errs) > 0 {
		return fmt.Errorf("render frame: %w", errors.Join(errs...))
	}
	return nil
}

// Dispose releases what the skybox system, the pipeline and the renderers hold for
// the entities.
func (rc *RenderContext) Dispose(entities []*scene.Entity) error {
	errs := []error{rc.Skybox.Dispose(entities), rc.Pipeline.Dispose(entities)}
	for _, r := range rc.Renderers {
		if d, ok := r.(entityDisposer); ok {
			errs = append(errs, d.Dispose(entities))
		}
	}
	return errors.Join(errs...)
}

// ApplyConfig applies the settings that can change while running.
func (rc *RenderContext) ApplyConfig(cfg *config.Config) {
	rc.Pipeline.SetDebug(cfg.Pipeline.Debug)
}

// Close releases every cached resource.
func (rc *RenderContext) Close() error {
	return rc.Cache.Dispose()
}
