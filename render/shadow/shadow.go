// Package shadow renders shadow maps for directional, spot, area and point lights
// through the render graph.
package shadow

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/scene"
)

const (
	pointLightNear = 0.1
	minNear        = 0.01
	// area lights have no range, their fallback far plane matches the spot light default
	areaLightFar = 10
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Recorder enqueues passes. *graph.Graph implements it.
type Recorder interface {
	RenderPass(p graph.RenderPass)
}

// Allocator hands out frame resources. *cache.Cache implements it.
type Allocator interface {
	Texture2D(desc gpu.TextureDesc) (gpu.Texture, error)
	TextureCube(desc gpu.TextureDesc) (gpu.Texture, error)
	Pass(desc gpu.PassDesc) (gpu.Pass, error)
}

// DrawFunc draws the shadow casters for light from view.
type DrawFunc func(view *scene.RenderView, light scene.ShadowLight) error

type Mapping struct {
	graph       Recorder
	cache       Allocator
	descriptors *descriptors.Descriptors
	log         Logger
}

func New(g Recorder, c Allocator, d *descriptors.Descriptors, log Logger) *Mapping {
	if log == nil {
		log = nopLogger{}
	}
	if d == nil {
		d = descriptors.New()
	}
	return &Mapping{graph: g, cache: c, descriptors: d, log: log}
}

func state(l *scene.LightBase) *scene.ShadowState {
	if l.Shadow == nil {
		l.Shadow = &scene.ShadowState{}
	}
	return l.Shadow
}

// casterBounds is the union of the casters' world bounds in light view space.
func casterBounds(view mgl32.Mat4, casters []*scene.Entity) scene.AABB {
	bounds := scene.EmptyAABB()
	for _, e := range casters {
		if e.Transform == nil || !e.Transform.Updated {
			continue
		}
		bounds = bounds.Union(e.Transform.WorldBounds.Transform(view))
	}
	return bounds
}

// padded grows degenerate axes so the fitted projection stays invertible.
func padded(b scene.AABB, margin float32) scene.AABB {
	for axis := 0; axis < 3; axis++ {
		if b[1][axis]-b[0][axis] < margin {
			b[0][axis] -= margin
			b[1][axis] += margin
		}
	}
	return b
}

func shadowView(proj, view mgl32.Mat4, size int) *scene.RenderView {
	cam := &scene.Camera{
		ProjectionMatrix: proj,
		ViewMatrix:       view,
		Frustum:          scene.ExtractFrustum(proj.Mul4(view)),
		Ready:            true,
	}
	return &scene.RenderView{
		Camera:         cam,
		Viewport:       gpu.Viewport{0, 0, size, size},
		Exposure:       1,
		OutputEncoding: gpu.EncodingLinear,
	}
}

func passName(id scene.EntityID) string {
	return fmt.Sprintf("RenderShadowMap %d", id)
}

// maps allocates the colour and depth targets of a 2D shadow map and its pass.
func (m *Mapping) maps(table descriptors.LightShadows) (gpu.Texture, gpu.Texture, gpu.Pass, error) {
	color, err := m.cache.Texture2D(table.ColorMap)
	if err != nil {
		return nil, nil, nil, err
	}
	depth, err := m.cache.Texture2D(table.ShadowMap)
	if err != nil {
		return nil, nil, nil, err
	}
	pass, err := m.cache.Pass(table.Pass.Desc([]gpu.Attachment{{Texture: color}}, depth))
	if err != nil {
		return nil, nil, nil, err
	}
	return color, depth, pass, nil
}

// RenderDirectionalLightShadowMap fits an orthographic projection around the casters
// as seen from the light.
func (m *Mapping) RenderDirectionalLightShadowMap(lightEntity *scene.Entity, casters []*scene.Entity, draw DrawFunc) error {
	light := lightEntity.DirectionalLight
	s := state(&light.LightBase)
	view := light.Matrices.View

	bounds := casterBounds(view, casters)
	if bounds.IsEmpty() {
		bounds = scene.AABB{{-1, -1, -1}, {1, 1, 1}}
	}
	bounds = padded(bounds, 0.01)
	// the light looks down -Z, so the nearest point has the largest z
	s.Near = -bounds[1][2]
	s.Far = -bounds[0][2]
	s.Projection = mgl32.Ortho(bounds[0][0], bounds[1][0], bounds[0][1], bounds[1][1], s.Near, s.Far)
	s.View = view
	s.Bias = light.Bias
	s.SceneBoundsInLightSpace = bounds

	table := m.descriptors.DirectionalLightShadows
	color, depth, pass, err := m.maps(table)
	if err != nil {
		return err
	}
	s.ColorMap = color
	s.ShadowMap = depth

	rv := shadowView(s.Projection, s.View, table.ShadowMap.Width)
	m.graph.RenderPass(graph.RenderPass{
		Name:   passName(lightEntity.ID),
		View:   rv,
		Pass:   pass,
		Render: func() error { return draw(rv, light) },
	})
	m.log.Debugf("shadow: directional light %d near %.2f far %.2f", lightEntity.ID, s.Near, s.Far)
	return nil
}

// RenderSpotLightShadowMap renders spot lights and area lights with a perspective
// projection of twice the cone angle. Area lights use a 90 degree cone.
func (m *Mapping) RenderSpotLightShadowMap(lightEntity *scene.Entity, casters []*scene.Entity, draw DrawFunc) error {
	var (
		light    scene.ShadowLight
		angle    float32
		fallback float32
	)
	switch {
	case lightEntity.SpotLight != nil:
		light = lightEntity.SpotLight
		angle = lightEntity.SpotLight.Angle
		fallback = lightEntity.SpotLight.Range
	case lightEntity.AreaLight != nil:
		light = lightEntity.AreaLight
		angle = math.Pi / 4
		fallback = areaLightFar
	default:
		return fmt.Errorf("shadow: entity %d has no spot or area light", lightEntity.ID)
	}
	base := light.Base()
	s := state(base)
	view := base.Matrices.View

	bounds := casterBounds(view, casters)
	near, far := float32(pointLightNear), fallback
	if !bounds.IsEmpty() {
		near = max(-bounds[1][2], minNear)
		far = -bounds[0][2]
	}
	if far <= near {
		near, far = pointLightNear, fallback
	}
	s.Near = near
	s.Far = far
	s.Projection = mgl32.Perspective(2*angle, 1, near, far)
	s.View = view
	s.Bias = base.Bias
	s.SceneBoundsInLightSpace = bounds

	table := m.descriptors.SpotLightShadows
	color, depth, pass, err := m.maps(table)
	if err != nil {
		return err
	}
	s.ColorMap = color
	s.ShadowMap = depth

	rv := shadowView(s.Projection, s.View, table.ShadowMap.Width)
	m.graph.RenderPass(graph.RenderPass{
		Name:   passName(lightEntity.ID),
		View:   rv,
		Pass:   pass,
		Render: func() error { return draw(rv, light) },
	})
	return nil
}

// RenderPointLightShadowMap renders one pass per cube face into the light's cubemap.
func (m *Mapping) RenderPointLightShadowMap(lightEntity *scene.Entity, casters []*scene.Entity, draw DrawFunc) error {
	light := lightEntity.PointLight
	s := state(&light.LightBase)
	position := lightEntity.Transform.WorldPosition

	table := m.descriptors.PointLightShadows
	cubemap, err := m.cache.TextureCube(table.ShadowCubemap)
	if err != nil {
		return err
	}
	depth, err := m.cache.Texture2D(table.ShadowMap)
	if err != nil {
		return err
	}

	s.Near = pointLightNear
	s.Far = light.Range
	s.Bias = light.Bias
	s.Projection = mgl32.Perspective(math.Pi/2, 1, s.Near, s.Far)
	s.View = mgl32.Translate3D(-position[0], -position[1], -position[2])
	s.SceneBoundsInLightSpace = casterBounds(s.View, casters)
	s.ShadowCubemap = cubemap
	s.ShadowMap = depth

	for i, side := range table.CubemapSides {
		pass, err := m.cache.Pass(table.Passes[i].Desc([]gpu.Attachment{{Texture: cubemap, Face: side.Face}}, depth))
		if err != nil {
			return err
		}
		view := mgl32.LookAtV(position, position.Add(side.Target), side.Up)
		rv := shadowView(s.Projection, view, table.ShadowCubemap.Width)
		m.graph.RenderPass(graph.RenderPass{
			Name:   fmt.Sprintf("%s face %d", passName(lightEntity.ID), i),
			View:   rv,
			Pass:   pass,
			Render: func() error { return draw(rv, light) },
		})
	}
	return nil
}
