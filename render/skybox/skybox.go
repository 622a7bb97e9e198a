// Package skybox keeps each skybox entity's procedural sky texture up to date.
package skybox

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/scene"
	"github.com/gekko3d/lumen/render/shaders"
)

const (
	SkyTextureWidth  = 512
	SkyTextureHeight = 256
)

var skyPipeline = gpu.PipelineDesc{
	Name: "skyboxUpdateSkyTexture",
	Vert: shaders.FullscreenVert,
	Frag: shaders.SkyFrag,
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Allocator provides the shared fullscreen resources. *cache.Cache implements it.
type Allocator interface {
	Pipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error)
	FullscreenTriangle() (*cache.FullscreenTriangle, error)
}

type Recorder interface {
	RenderPass(p graph.RenderPass)
}

type instance struct {
	texture     gpu.Texture
	pass        gpu.Pass
	rgbm        bool
	sunPosition mgl32.Vec3
	stale       bool
}

// System owns one sky texture per skybox entity. Textures persist across frames and
// are released by Dispose.
type System struct {
	device    gpu.Device
	allocator Allocator
	graph     Recorder
	log       Logger
	instances map[scene.EntityID]*instance
}

func New(device gpu.Device, allocator Allocator, g Recorder, log Logger) *System {
	if log == nil {
		log = nopLogger{}
	}
	return &System{
		device:    device,
		allocator: allocator,
		graph:     g,
		log:       log,
		instances: make(map[scene.EntityID]*instance),
	}
}

func textureDesc(rgbm bool) gpu.TextureDesc {
	desc := gpu.TextureDesc{
		Name:        "skyTexture",
		Width:       SkyTextureWidth,
		Height:      SkyTextureHeight,
		PixelFormat: gpu.PixelFormatRGBA16F,
		Encoding:    gpu.EncodingLinear,
		Min:         gpu.FilterLinear,
		Mag:         gpu.FilterLinear,
	}
	if rgbm {
		desc.PixelFormat = gpu.PixelFormatRGBA8
		desc.Encoding = gpu.EncodingRGBM
	}
	return desc
}

func (s *System) create(id scene.EntityID, sky *scene.Skybox) (*instance, error) {
	tex, err := s.device.Texture2D(textureDesc(sky.RGBM))
	if err != nil {
		return nil, fmt.Errorf("skybox: entity %d: %w", id, err)
	}
	tex.SetLabel(fmt.Sprintf("skyTexture (id: %s)", tex.ID()))
	pass, err := s.device.Pass(gpu.PassDesc{
		Name:       "skyboxUpdateSkyTexture",
		Color:      []gpu.Attachment{{Texture: tex}},
		ClearColor: gpu.ClearColor(0, 0, 0, 0),
	})
	if err != nil {
		_ = s.device.Dispose(tex)
		return nil, fmt.Errorf("skybox: entity %d: %w", id, err)
	}
	return &instance{texture: tex, pass: pass, rgbm: sky.RGBM, sunPosition: sky.SunPosition}, nil
}

func (s *System) release(inst *instance) error {
	var errs []error
	for _, r := range []gpu.Resource{inst.pass, inst.texture} {
		if s.device.Tracked(r) {
			errs = append(errs, s.device.Dispose(r))
		}
	}
	return errors.Join(errs...)
}

// Update records a sky pass for every skybox that is new, switched encoding or whose
// sun moved since the last update.
func (s *System) Update(entities []*scene.Entity) error {
	for _, e := range entities {
		sky := e.Skybox
		if sky == nil {
			continue
		}
		inst, ok := s.instances[e.ID]
		dirty := !ok
		if ok && inst.rgbm != sky.RGBM {
			if err := s.release(inst); err != nil {
				return err
			}
			dirty = true
		}
		if dirty {
			var err error
			if inst, err = s.create(e.ID, sky); err != nil {
				return err
			}
			s.instances[e.ID] = inst
		} else if inst.stale || inst.sunPosition != sky.SunPosition {
			inst.sunPosition = sky.SunPosition
			dirty = true
		}
		inst.stale = false
		sky.SkyTexture = inst.texture
		if !dirty {
			continue
		}
		if err := s.record(e.ID, inst); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) record(id scene.EntityID, inst *instance) error {
	pipe, err := s.allocator.Pipeline(skyPipeline)
	if err != nil {
		return err
	}
	tri, err := s.allocator.FullscreenTriangle()
	if err != nil {
		return err
	}
	cmd := gpu.Command{Name: "skyboxUpdateSkyTextureCmd", Pipeline: pipe, Attributes: tri.Attributes, Count: tri.Count}
	uniforms := gpu.Uniforms{"uSunPosition": inst.sunPosition, "uRGBM": inst.rgbm}
	s.graph.RenderPass(graph.RenderPass{
		Name: fmt.Sprintf("Skybox.updateSkyTexture %d", id),
		View: &scene.RenderView{Viewport: gpu.Viewport{0, 0, SkyTextureWidth, SkyTextureHeight}},
		Pass: inst.pass,
		Render: func() error {
			return s.device.Submit(cmd, uniforms)
		},
	})
	s.log.Debugf("skybox: entity %d sun %v", id, inst.sunPosition)
	return nil
}

// Invalidate makes the next Update record every sky pass again. Used when a frame's
// recorded passes were discarded before they ran.
func (s *System) Invalidate() {
	for _, inst := range s.instances {
		inst.stale = true
	}
}

// Dispose releases the sky textures of the given entities.
func (s *System) Dispose(entities []*scene.Entity) error {
	var errs []error
	for _, e := range entities {
		inst, ok := s.instances[e.ID]
		if !ok {
			continue
		}
		errs = append(errs, s.release(inst))
		delete(s.instances, e.ID)
		if e.Skybox != nil {
			e.Skybox.SkyTexture = nil
		}
	}
	return errors.Join(errs...)
}
