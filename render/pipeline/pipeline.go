// Package pipeline schedules a frame's shadow, main, grab, transparent, post-processing
// and blit passes into the render graph.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/scene"
	"github.com/gekko3d/lumen/render/shadow"
)

var ErrNoCamera = errors.New("pipeline: no camera entity")

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Option func(*RenderPipeline)

func WithDescriptors(d *descriptors.Descriptors) Option {
	return func(p *RenderPipeline) { p.descriptors = d }
}

func WithLogger(l Logger) Option {
	return func(p *RenderPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithOutputs requests extra main pass outputs. Color and depth are always produced.
func WithOutputs(outputs ...Output) Option {
	return func(p *RenderPipeline) {
		for _, o := range outputs {
			p.outputs[o] = true
		}
	}
}

// WithDebug logs the scheduled passes of every frame.
func WithDebug(enabled bool) Option {
	return func(p *RenderPipeline) { p.debug = enabled }
}

// Options configures one Update call.
type Options struct {
	// RenderView overrides the default view. It is copied, never retained.
	RenderView *scene.RenderView
	Renderers  []Renderer
	// Offscreen skips the blit to the default framebuffer.
	Offscreen bool
}

type RenderPipeline struct {
	device      gpu.Device
	cache       *cache.Cache
	graph       *graph.Graph
	descriptors *descriptors.Descriptors
	log         Logger
	outputs     map[Output]bool
	debug       bool

	shadows     *shadow.Mapping
	postTargets map[scene.EntityID]*PostTargets
}

func New(device gpu.Device, c *cache.Cache, g *graph.Graph, opts ...Option) *RenderPipeline {
	p := &RenderPipeline{
		device:      device,
		cache:       c,
		graph:       g,
		log:         nopLogger{},
		outputs:     map[Output]bool{OutputColor: true, OutputDepth: true},
		postTargets: make(map[scene.EntityID]*PostTargets),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.descriptors == nil {
		p.descriptors = descriptors.New()
	}
	return p
}

// SetDebug toggles per-frame schedule logging.
func (p *RenderPipeline) SetDebug(enabled bool) {
	p.debug = enabled
}

func (p *RenderPipeline) Descriptors() *descriptors.Descriptors {
	return p.descriptors
}

// PostProcessingTargets returns the post-processing targets of a camera entity.
func (p *RenderPipeline) PostProcessingTargets(id scene.EntityID) (*PostTargets, bool) {
	t, ok := p.postTargets[id]
	return t, ok
}

// CheckLight reports whether a light entity is ready for shadow mapping, warning when not.
func (p *RenderPipeline) CheckLight(light *scene.LightBase, e *scene.Entity) bool {
	if e.Transform == nil || !e.Transform.Updated {
		p.log.Warnf("pipeline: light entity %d has no computed transform, add the transform system", e.ID)
		return false
	}
	if !light.Matrices.Ready {
		p.log.Warnf("pipeline: light entity %d has no light matrices, add the light system", e.ID)
		return false
	}
	return true
}

// Dispose releases what the pipeline holds for the given entities: material textures
// still tracked by the device, camera post-processing targets and light shadow state.
func (p *RenderPipeline) Dispose(entities []*scene.Entity) error {
	var errs []error
	for _, e := range entities {
		if e.Material != nil {
			for _, tex := range e.Material.Textures() {
				if !p.device.Tracked(tex) {
					continue
				}
				if err := p.device.Dispose(tex); err != nil {
					errs = append(errs, fmt.Errorf("pipeline: dispose %q: %w", tex.Label(), err))
				}
			}
		}
		if targets, ok := p.postTargets[e.ID]; ok && e.Camera != nil {
			if err := targets.release(p.device, p.cache); err != nil {
				errs = append(errs, err)
			}
			delete(p.postTargets, e.ID)
		}
		for _, l := range e.Lights() {
			l.Base().Shadow = nil
		}
	}
	return errors.Join(errs...)
}

func (p *RenderPipeline) postTargetsFor(id scene.EntityID, vp gpu.Viewport) (*PostTargets, error) {
	t, ok := p.postTargets[id]
	if ok && t.Width == vp.Width() && t.Height == vp.Height() {
		return t, nil
	}
	if ok {
		if err := t.release(p.device, p.cache); err != nil {
			return nil, err
		}
	}
	t = newPostTargets(vp.Width(), vp.Height())
	p.postTargets[id] = t
	return t, nil
}
