// Package mesh draws Geometry entities with a single directional Lambert term, or
// flat colour for unlit materials. It implements the pipeline's opaque, transparent
// and shadow hooks.
//
// Casters are drawn into the shadow maps, but this renderer never samples them:
// ReceiveShadows is ignored. Renderers that light with shadows read the maps from
// scene.ShadowState.Textures, which the main pass lists in its uses.
package mesh

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/pipeline"
	"github.com/gekko3d/lumen/render/scene"
)

//go:embed mesh.vert.wgsl
var vertSource string

//go:embed mesh.frag.wgsl
var fragSource string

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Allocator provides cached pipelines. *cache.Cache implements it.
type Allocator interface {
	Pipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error)
}

type Option func(*Renderer)

func WithLogger(l Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithAmbient sets the light fraction lit surfaces receive regardless of the sun.
func WithAmbient(ambient float32) Option {
	return func(r *Renderer) { r.ambient = ambient }
}

var defaultLightDirection = mgl32.Vec3{0, -1, 0}

type buffers struct {
	positions gpu.Buffer
	normals   gpu.Buffer
	indices   gpu.Buffer
	vertices  int
	count     int
}

func (b *buffers) resources() []gpu.Resource {
	out := []gpu.Resource{b.positions, b.normals}
	if !gpu.IsNil(b.indices) {
		out = append(out, b.indices)
	}
	return out
}

// Renderer uploads each entity's geometry on first draw and keeps it until Dispose.
// Geometry whose vertex or index count changes is uploaded again.
type Renderer struct {
	device    gpu.Device
	allocator Allocator
	log       Logger
	ambient   float32
	meshes    map[scene.EntityID]*buffers
}

func New(device gpu.Device, allocator Allocator, opts ...Option) *Renderer {
	r := &Renderer{
		device:    device,
		allocator: allocator,
		log:       nopLogger{},
		ambient:   -1,
		meshes:    make(map[scene.EntityID]*buffers),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ pipeline.OpaqueRenderer      = (*Renderer)(nil)
	_ pipeline.TransparentRenderer = (*Renderer)(nil)
	_ pipeline.ShadowRenderer      = (*Renderer)(nil)
)

func (r *Renderer) RenderOpaque(view *scene.RenderView, entities []*scene.Entity, opts pipeline.DrawOptions) error {
	return r.draw("mesh", view, entities, func(e *scene.Entity) bool { return !e.Material.Blend })
}

func (r *Renderer) RenderTransparent(view *scene.RenderView, entities []*scene.Entity, opts pipeline.DrawOptions) error {
	return r.draw("meshTransparent", view, entities, func(e *scene.Entity) bool { return e.Material.Blend })
}

func (r *Renderer) RenderShadow(view *scene.RenderView, entities []*scene.Entity, opts pipeline.DrawOptions) error {
	return r.draw("meshShadow", view, entities, func(e *scene.Entity) bool { return e.Material.CastShadows })
}

// Dispose releases the buffers uploaded for entities.
func (r *Renderer) Dispose(entities []*scene.Entity) error {
	var errs []error
	for _, e := range entities {
		if b, ok := r.meshes[e.ID]; ok {
			errs = append(errs, r.release(b))
			delete(r.meshes, e.ID)
		}
	}
	return errors.Join(errs...)
}

// Close releases every uploaded buffer.
func (r *Renderer) Close() error {
	var errs []error
	for id, b := range r.meshes {
		errs = append(errs, r.release(b))
		delete(r.meshes, id)
	}
	return errors.Join(errs...)
}

func (r *Renderer) release(b *buffers) error {
	var errs []error
	for _, res := range b.resources() {
		errs = append(errs, r.device.Dispose(res))
	}
	return errors.Join(errs...)
}

func drawable(e *scene.Entity) bool {
	return e.Transform != nil && e.Geometry != nil && e.Material != nil && len(e.Geometry.Positions) >= 3
}

func (r *Renderer) draw(name string, view *scene.RenderView, entities []*scene.Entity, keep func(*scene.Entity) bool) error {
	if view == nil || view.Camera == nil {
		return nil
	}
	frame := gpu.Uniforms{
		"uViewProjection": view.Camera.ProjectionMatrix.Mul4(view.Camera.ViewMatrix),
		"uLightDirection": sunDirection(entities),
	}
	for _, e := range entities {
		if !drawable(e) || !keep(e) {
			continue
		}
		p, err := r.pipeline(name, e.Material)
		if err != nil {
			return err
		}
		b, err := r.upload(e)
		if err != nil {
			return err
		}
		cmd := gpu.Command{
			Name:       name,
			Pipeline:   p,
			Attributes: map[string]gpu.Buffer{"aPosition": b.positions, "aNormal": b.normals},
			Indices:    b.indices,
			Count:      b.count,
			Vertices:   b.vertices,
			Uniforms: gpu.Uniforms{
				"uBaseColor": e.Material.BaseColor,
				"uModel":     e.Transform.ModelMatrix,
				"uUnlit":     e.Material.Unlit,
			},
		}
		if err := r.device.Submit(cmd, frame); err != nil {
			return fmt.Errorf("mesh: draw entity %d: %w", e.ID, err)
		}
	}
	return nil
}

func (r *Renderer) pipeline(name string, m *scene.Material) (gpu.Pipeline, error) {
	desc := gpu.PipelineDesc{
		Name:       name,
		Vert:       vertSource,
		Frag:       fragSource,
		DepthTest:  m.DepthTest,
		DepthWrite: m.DepthWrite && !m.Blend,
		Blend:      m.Blend,
	}
	if r.ambient >= 0 {
		desc.Defines = gpu.Defines("AMBIENT " + strconv.FormatFloat(float64(r.ambient), 'f', -1, 32))
	}
	return r.allocator.Pipeline(desc)
}

func (r *Renderer) upload(e *scene.Entity) (*buffers, error) {
	g := e.Geometry
	vertices := len(g.Positions) / 3
	count := vertices
	if len(g.Indices) > 0 {
		count = len(g.Indices)
	}
	if b, ok := r.meshes[e.ID]; ok {
		if b.vertices == vertices && b.count == count {
			return b, nil
		}
		if err := r.release(b); err != nil {
			r.log.Warnf("mesh: release stale buffers of entity %d: %v", e.ID, err)
		}
		delete(r.meshes, e.ID)
	}

	normals := g.Normals
	if len(normals) != len(g.Positions) {
		normals = make([]float32, len(g.Positions))
		for i := 1; i < len(normals); i += 3 {
			normals[i] = 1
		}
	}

	b := &buffers{vertices: vertices, count: count}
	var err error
	if b.positions, err = r.device.VertexBuffer(g.Positions); err != nil {
		return nil, fmt.Errorf("mesh: upload entity %d: %w", e.ID, err)
	}
	if b.normals, err = r.device.VertexBuffer(normals); err != nil {
		_ = r.device.Dispose(b.positions)
		return nil, fmt.Errorf("mesh: upload entity %d: %w", e.ID, err)
	}
	if len(g.Indices) > 0 {
		if b.indices, err = r.device.IndexBuffer(g.Indices); err != nil {
			_ = r.device.Dispose(b.positions)
			_ = r.device.Dispose(b.normals)
			return nil, fmt.Errorf("mesh: upload entity %d: %w", e.ID, err)
		}
	}
	r.meshes[e.ID] = b
	r.log.Debugf("mesh: uploaded entity %d, %d vertices", e.ID, vertices)
	return b, nil
}

// sunDirection is the direction of the first ready directional light.
func sunDirection(entities []*scene.Entity) mgl32.Vec3 {
	for _, e := range entities {
		if l := e.DirectionalLight; l != nil && l.Matrices.Ready && l.Matrices.Direction.Len() > 0 {
			return l.Matrices.Direction
		}
	}
	return defaultLightDirection
}
